// Package printjob runs one print attempt: it resolves the trigger groups of
// the order's product and runs the product, control4 and my2n branches in
// that order. A branch whose label data fails validation ends the attempt;
// a branch that fails while writing files does not, and later branches
// still run. Files written by earlier branches stay on disk.
package printjob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/packingline/internal/audit"
	"github.com/ppiankov/packingline/internal/config"
	"github.com/ppiankov/packingline/internal/journal"
	"github.com/ppiankov/packingline/internal/lbl"
	"github.com/ppiankov/packingline/internal/order"
	"github.com/ppiankov/packingline/internal/output"
	"github.com/ppiankov/packingline/internal/report"
	"github.com/ppiankov/packingline/internal/session"
)

var (
	ErrNotMapped      = errors.New("product is not mapped to any trigger group")
	ErrEmptyLabelFile = errors.New("label file is empty")
	ErrNoSession      = errors.New("no operator session")
	ErrNoOrder        = errors.New("no work order open")
	ErrNotConfigured  = errors.New("path is not configured")
)

// WriteError marks a branch that failed while writing its label data or
// trigger files.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// Status of one branch.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusNotRun  Status = "not_run"
)

// BranchResult is the outcome of one trigger group.
type BranchResult struct {
	Group      string   `json:"group"`
	Status     Status   `json:"status"`
	OutputPath string   `json:"output_path,omitempty"`
	Triggers   []string `json:"triggers,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Err        error    `json:"-"`
}

// Result is the outcome of a print attempt.
type Result struct {
	Serial   string         `json:"serial"`
	Order    string         `json:"order"`
	Product  string         `json:"product"`
	Groups   []string       `json:"groups"`
	Branches []BranchResult `json:"branches"`
}

// OK reports whether no branch failed.
func (r *Result) OK() bool {
	return r.Failed() == nil
}

// Failed returns the failed branch, or nil.
func (r *Result) Failed() *BranchResult {
	for i := range r.Branches {
		if r.Branches[i].Status == StatusFailed {
			return &r.Branches[i]
		}
	}
	return nil
}

// Completed lists the groups whose files were written.
func (r *Result) Completed() []string {
	done := []string{}
	for _, b := range r.Branches {
		if b.Status == StatusOK {
			done = append(done, b.Group)
		}
	}
	return done
}

// AuditLog receives one entry per branch.
type AuditLog interface {
	Record(entry audit.Entry) error
}

// Journal receives one record per attempt.
type Journal interface {
	Record(ctx context.Context, rec journal.PrintRecord) (int64, error)
}

// ConfigFunc returns the configuration and its hash for the next attempt.
type ConfigFunc func() (*config.Config, string)

// Static returns a ConfigFunc for a fixed configuration.
func Static(cfg *config.Config, hash string) ConfigFunc {
	return func() (*config.Config, string) { return cfg, hash }
}

// Options configures a Runner. Audit and Journal are optional.
type Options struct {
	Config  ConfigFunc
	Writer  *output.Writer
	Audit   AuditLog
	Journal Journal
	Logger  *zap.Logger
}

// Runner executes print attempts.
type Runner struct {
	config  ConfigFunc
	writer  *output.Writer
	audit   AuditLog
	journal Journal
	logger  *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	writer := opts.Writer
	if writer == nil {
		writer = output.NewWriter(logger)
	}
	return &Runner{
		config:  opts.Config,
		writer:  writer,
		audit:   opts.Audit,
		journal: opts.Journal,
		logger:  logger.Named("printjob"),
	}
}

type attempt struct {
	cfg    *config.Config
	sess   *session.Session
	wo     *order.WorkOrder
	serial string
}

// Run prints the labels of serial. The returned error is the reason the
// attempt stopped; the Result describes every branch either way.
func (r *Runner) Run(ctx context.Context, sess *session.Session, wo *order.WorkOrder, serial string) (*Result, error) {
	if wo == nil {
		return nil, ErrNoOrder
	}
	cfg, hash := r.config()
	serial = lbl.NormalizeSerial(serial)
	res := &Result{Serial: serial, Order: wo.Code, Product: wo.Product}

	err := r.run(ctx, attempt{cfg: cfg, sess: sess, wo: wo, serial: serial}, res)
	r.record(ctx, sess, res, hash, err)
	return res, err
}

func (r *Runner) run(ctx context.Context, a attempt, res *Result) error {
	if a.sess == nil {
		return ErrNoSession
	}
	if err := lbl.ValidateSerial(a.serial); err != nil {
		return err
	}
	res.Groups = a.cfg.TriggerGroupsFor(a.wo.Product)
	if len(res.Groups) == 0 {
		return fmt.Errorf("%w: %q", ErrNotMapped, a.wo.Product)
	}
	if len(a.wo.Lines) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyLabelFile, a.wo.LabelPath)
	}

	var errs []error
	for i, group := range res.Groups {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		br := r.runBranch(a, group)
		res.Branches = append(res.Branches, br)
		if br.Status != StatusFailed {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", group, br.Err))
		var werr *WriteError
		if errors.As(br.Err, &werr) {
			continue
		}
		for _, rest := range res.Groups[i+1:] {
			res.Branches = append(res.Branches, BranchResult{Group: rest, Status: StatusNotRun})
		}
		break
	}
	return errors.Join(errs...)
}

func (r *Runner) runBranch(a attempt, group string) BranchResult {
	br := BranchResult{Group: group}
	var err error
	switch group {
	case config.GroupProduct:
		err = r.labelBranch(a, lbl.Product, a.cfg.Outputs.Product, true, &br)
	case config.GroupControl4:
		err = r.labelBranch(a, lbl.Control4, a.cfg.Outputs.Control4, false, &br)
	case config.GroupMy2N:
		err = r.my2nBranch(a, &br)
	default:
		br.Status = StatusSkipped
		br.Reason = "no label protocol for group"
		r.logger.Warn("trigger group has no label protocol", zap.String("group", group))
		return br
	}
	if err != nil {
		br.Status = StatusFailed
		br.Err = err
		br.Reason = err.Error()
		r.logger.Warn("print branch failed",
			zap.String("group", group),
			zap.String("serial", a.serial),
			zap.Error(err))
		return br
	}
	br.Status = StatusOK
	r.logger.Info("print branch done",
		zap.String("group", group),
		zap.String("product", a.wo.Product),
		zap.String("serial", a.serial))
	return br
}

func (r *Runner) labelBranch(a attempt, p lbl.Protocol, outPath string, injectPrefix bool, br *BranchResult) error {
	ex, err := lbl.Extract(a.wo.Lines, a.serial, p)
	if err != nil {
		return err
	}
	record := ex.Record
	if injectPrefix {
		prefix, err := lbl.EncodeText(a.sess.Prefix())
		if err != nil {
			return err
		}
		if record, err = lbl.InjectPrefix(ex.Header, ex.Record, prefix); err != nil {
			return err
		}
	}
	if err := r.writer.WriteLabel(outPath, ex.Header, record); err != nil {
		return &WriteError{Err: err}
	}
	br.OutputPath = outPath
	if _, err := r.writer.TouchTriggers(a.cfg.Paths.Triggers, ex.Triggers); err != nil {
		return &WriteError{Err: err}
	}
	br.Triggers = ex.Triggers
	return nil
}

func (r *Runner) my2nBranch(a attempt, br *BranchResult) error {
	if strings.TrimSpace(a.cfg.Paths.Reports) == "" {
		return fmt.Errorf("%w: paths.reports", ErrNotConfigured)
	}
	if strings.TrimSpace(a.cfg.Outputs.My2N) == "" {
		return fmt.Errorf("%w: outputs.my2n", ErrNotConfigured)
	}
	token, err := report.ExtractMy2nToken(a.serial, a.cfg.Paths.Reports)
	if err != nil {
		return err
	}
	if err := r.writer.WriteLabel(a.cfg.Outputs.My2N, output.My2NHeader, output.My2NRecord(a.serial, token)); err != nil {
		return &WriteError{Err: err}
	}
	br.OutputPath = a.cfg.Outputs.My2N
	triggers := []string{report.TriggerMy2N}
	if _, err := r.writer.TouchTriggers(a.cfg.Paths.Triggers, triggers); err != nil {
		return &WriteError{Err: err}
	}
	br.Triggers = triggers
	return nil
}

// record writes the attempt to the audit log and the journal. Failures
// are logged; the label files are already written at this point.
func (r *Runner) record(ctx context.Context, sess *session.Session, res *Result, hash string, runErr error) {
	var stationID, sessionID, operator string
	if sess != nil {
		stationID, sessionID, operator = sess.StationID, sess.ID, sess.Prefix()
	}

	if r.audit != nil {
		base := audit.Entry{
			StationID:  stationID,
			SessionID:  sessionID,
			Event:      audit.EventPrint,
			Operator:   operator,
			Order:      res.Order,
			Product:    res.Product,
			Serial:     res.Serial,
			ConfigHash: hash,
		}
		var entries []audit.Entry
		if len(res.Branches) == 0 {
			e := base
			e.Outcome = audit.OutcomeFailed
			if runErr != nil {
				e.Reason = runErr.Error()
			}
			entries = append(entries, e)
		}
		for _, b := range res.Branches {
			if b.Status == StatusNotRun {
				continue
			}
			e := base
			e.Branch = b.Group
			e.Outcome = audit.OutcomeOK
			if b.Status == StatusFailed {
				e.Outcome = audit.OutcomeFailed
			}
			e.Reason = b.Reason
			entries = append(entries, e)
		}
		for _, e := range entries {
			if err := r.audit.Record(e); err != nil {
				r.logger.Error("failed to write audit entry", zap.Error(err))
			}
		}
	}

	if r.journal != nil {
		rec := journal.PrintRecord{
			StationID: stationID,
			SessionID: sessionID,
			Operator:  operator,
			Order:     res.Order,
			Product:   res.Product,
			Serial:    res.Serial,
			Groups:    res.Groups,
			Completed: res.Completed(),
			Outcome:   string(StatusOK),
		}
		if runErr != nil {
			rec.Outcome = string(StatusFailed)
			rec.Reason = runErr.Error()
		}
		if _, err := r.journal.Record(context.WithoutCancel(ctx), rec); err != nil {
			r.logger.Error("failed to write print journal", zap.Error(err))
		}
	}
}
