// Package station runs the operator dialogue of a packing station: log in
// with a password, open a work order, then scan serial numbers to print.
// Input is line based so the station works with a terminal or a scanner
// that types into one.
package station

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/packingline/internal/audit"
	"github.com/ppiankov/packingline/internal/credential"
	"github.com/ppiankov/packingline/internal/order"
	"github.com/ppiankov/packingline/internal/printjob"
	"github.com/ppiankov/packingline/internal/reload"
	"github.com/ppiankov/packingline/internal/session"
	"github.com/ppiankov/packingline/internal/throttle"
)

// Operator commands accepted at every prompt.
const (
	CmdBack = ":back"
	CmdExit = ":exit"
)

type state int

const (
	stateLogin state = iota
	stateOrder
	stateSerial
)

// Options configures a Station. Audit, Limiter and Reloader are optional.
type Options struct {
	Config   printjob.ConfigFunc
	Runner   *printjob.Runner
	Audit    printjob.AuditLog
	Limiter  *throttle.Limiter
	Reloader *reload.Reloader
	Logger   *zap.Logger
	In       io.Reader
	Out      io.Writer
}

// Station is one operator dialogue.
type Station struct {
	opts   Options
	logger *zap.Logger
	out    io.Writer

	state state
	sess  *session.Session
	wo    *order.WorkOrder
}

// New creates a Station.
func New(opts Options) *Station {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Station{
		opts:   opts,
		logger: logger.Named("station"),
		out:    opts.Out,
	}
}

// Run serves the dialogue until :exit, end of input, or ctx is cancelled.
// The config reloader, if any, runs alongside and stops with the dialogue.
func (s *Station) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Reloader != nil {
		g.Go(func() error {
			return s.opts.Reloader.Run(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		return s.loop(gctx)
	})
	return g.Wait()
}

func (s *Station) loop(ctx context.Context) error {
	lines := readLines(ctx, s.opts.In)

	cfg, _ := s.opts.Config()
	s.printf("%s\n", cfg.Station.Title)
	s.prompt()

	for {
		select {
		case <-ctx.Done():
			s.logout()
			return nil
		case line, ok := <-lines:
			if !ok {
				s.logout()
				return nil
			}
			if !s.handle(ctx, line) {
				s.logout()
				return nil
			}
			s.prompt()
		}
	}
}

// readLines feeds input lines to a channel that closes at end of input.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (s *Station) prompt() {
	switch s.state {
	case stateLogin:
		s.printf("Password: ")
	case stateOrder:
		s.printf("Work order: ")
	case stateSerial:
		s.printf("[%s %s] Serial: ", s.wo.Code, s.sess.Prefix())
	}
}

func (s *Station) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

// handle processes one input line and reports whether to keep running.
func (s *Station) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch input {
	case CmdExit:
		return false
	case CmdBack:
		s.back()
		return true
	}

	switch s.state {
	case stateLogin:
		s.login(input)
	case stateOrder:
		s.openOrder(input)
	case stateSerial:
		s.print(ctx, input)
	}
	return true
}

func (s *Station) back() {
	switch s.state {
	case stateSerial:
		s.wo = nil
		s.state = stateOrder
	case stateOrder:
		s.logout()
		s.state = stateLogin
	}
}

func (s *Station) login(password string) {
	cfg, hash := s.opts.Config()
	stationID := cfg.Station.ID

	if password == "" {
		s.printf("Enter your password.\n")
		return
	}

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Allow(stationID); err != nil {
			var te *throttle.ThrottledError
			if errors.As(err, &te) {
				s.printf("Too many failed logins. Try again in %s.\n", te.RetryAfter.Round(time.Second))
			} else {
				s.printf("Login refused: %v\n", err)
			}
			s.audit(audit.Entry{StationID: stationID, Event: audit.EventLoginThrottled, Outcome: audit.OutcomeFailed, Reason: err.Error(), ConfigHash: hash})
			return
		}
	}

	store := credential.NewStore(cfg.Paths.Credentials, s.logger)
	id, ok := store.CheckLogin(password)
	if !ok {
		if s.opts.Limiter != nil {
			if err := s.opts.Limiter.RecordFailure(stationID); err != nil {
				s.logger.Error("failed to record login failure", zap.Error(err))
			}
		}
		s.printf("Invalid password.\n")
		s.audit(audit.Entry{StationID: stationID, Event: audit.EventLoginFailed, Outcome: audit.OutcomeFailed, Reason: "no matching credential", ConfigHash: hash})
		return
	}

	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Reset(stationID); err != nil {
			s.logger.Warn("failed to reset login throttle", zap.Error(err))
		}
	}
	s.sess = session.New(stationID, *id)
	s.state = stateOrder
	s.printf("Logged in: %s (%s)\n", id.DisplayName(), id.Prefix)
	s.audit(audit.Entry{StationID: stationID, SessionID: s.sess.ID, Event: audit.EventLogin, Operator: id.Prefix, Outcome: audit.OutcomeOK, ConfigHash: hash})
}

func (s *Station) logout() {
	if s.sess == nil {
		return
	}
	cfg, hash := s.opts.Config()
	s.audit(audit.Entry{StationID: cfg.Station.ID, SessionID: s.sess.ID, Event: audit.EventLogout, Operator: s.sess.Prefix(), Outcome: audit.OutcomeOK, ConfigHash: hash})
	s.logger.Info("operator logged out", zap.String("session", s.sess.ID))
	s.sess = nil
	s.wo = nil
}

func (s *Station) openOrder(code string) {
	if code == "" {
		s.printf("Enter a work order.\n")
		return
	}
	cfg, hash := s.opts.Config()

	entry := audit.Entry{
		StationID:  cfg.Station.ID,
		SessionID:  s.sess.ID,
		Event:      audit.EventOrderOpen,
		Operator:   s.sess.Prefix(),
		Order:      order.NormalizeCode(code),
		ConfigHash: hash,
	}

	wo, err := order.Open(cfg.Paths.Orders, code)
	if err == nil {
		entry.Product = wo.Product
		if len(cfg.TriggerGroupsFor(wo.Product)) == 0 {
			err = fmt.Errorf("%w: %q", printjob.ErrNotMapped, wo.Product)
		}
	}
	if err != nil {
		s.printf("%s\n", Describe(err))
		entry.Outcome = audit.OutcomeFailed
		entry.Reason = err.Error()
		s.audit(entry)
		s.logger.Warn("work order not opened", zap.String("order", entry.Order), zap.Error(err))
		return
	}

	s.wo = wo
	s.state = stateSerial
	groups := cfg.TriggerGroupsFor(wo.Product)
	s.printf("Order %s, product %s (%s)\n", wo.Code, wo.Product, strings.Join(groups, ", "))
	entry.Outcome = audit.OutcomeOK
	s.audit(entry)
	s.logger.Info("work order opened", zap.String("order", wo.Code), zap.String("product", wo.Product))
}

func (s *Station) print(ctx context.Context, serial string) {
	if serial == "" {
		s.printf("Scan a serial number.\n")
		return
	}
	res, err := s.opts.Runner.Run(ctx, s.sess, s.wo, serial)
	if err != nil {
		if res == nil {
			s.printf("FAILED %s: %s\n", strings.TrimSpace(serial), Describe(err))
			return
		}
		if len(res.Completed()) > 0 {
			s.printf("Printed: %s\n", strings.Join(res.Completed(), ", "))
		}
		if res.Failed() == nil {
			s.printf("FAILED %s: %s\n", res.Serial, Describe(err))
			return
		}
		for _, b := range res.Branches {
			if b.Status == printjob.StatusFailed {
				s.printf("FAILED %s [%s]: %s\n", res.Serial, b.Group, Describe(b.Err))
			}
		}
		return
	}
	s.printf("OK %s: %s\n", res.Serial, strings.Join(res.Completed(), ", "))
}

func (s *Station) audit(e audit.Entry) {
	if s.opts.Audit == nil {
		return
	}
	if err := s.opts.Audit.Record(e); err != nil {
		s.logger.Error("failed to write audit entry", zap.Error(err))
	}
}
