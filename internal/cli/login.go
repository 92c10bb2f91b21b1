package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/credential"
	"github.com/ppiankov/packingline/internal/session"
)

var errLoginFailed = errors.New("login failed")

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check an operator password",
	Long: "Reads one password line from stdin and resolves the operator from the\n" +
		"credential file. Prints the operator as JSON. Exit code 1 if the\n" +
		"password matches no record. Failed attempts count toward the login limit.",
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// authenticate checks password under the login limit of this station.
func authenticate(password string) (*session.Session, error) {
	limiter := newLimiter()
	if err := limiter.Allow(cfg.Station.ID); err != nil {
		return nil, err
	}
	id, ok := credential.NewStore(cfg.Paths.Credentials, logger).CheckLogin(password)
	if !ok {
		if err := limiter.RecordFailure(cfg.Station.ID); err != nil {
			logger.Sugar().Errorf("failed to record login failure: %v", err)
		}
		return nil, errLoginFailed
	}
	if err := limiter.Reset(cfg.Station.ID); err != nil {
		logger.Sugar().Warnf("failed to reset login throttle: %v", err)
	}
	return session.New(cfg.Station.ID, *id), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin())
	if err != nil {
		return err
	}
	sess, err := authenticate(password)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(sess.Operator, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
