package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/packingline/internal/credential"
)

var (
	credAppend      bool
	credShowSecrets bool
)

func init() {
	rootCmd.AddCommand(credentialsCmd)
	credentialsCmd.AddCommand(credentialsEncodeCmd)
	credentialsCmd.AddCommand(credentialsDecodeCmd)
	credentialsEncodeCmd.Flags().BoolVar(&credAppend, "append", false, "Append the line to paths.credentials instead of printing it")
	credentialsDecodeCmd.Flags().BoolVar(&credShowSecrets, "show-secrets", false, "Print the secret field instead of masking it")
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Credential file operations",
	Long:  "Commands for writing and inspecting the obfuscated operator credential file.",
}

var credentialsEncodeCmd = &cobra.Command{
	Use:   "encode <secret> <id> <surname> <given-name> <prefix> [field...]",
	Short: "Encode one operator record as a credential file line",
	Args:  cobra.MinimumNArgs(5),
	RunE:  runCredentialsEncode,
}

var credentialsDecodeCmd = &cobra.Command{
	Use:   "decode [path]",
	Short: "Decode a credential file",
	Long:  "Prints every record of the credential file as JSON. Secrets are masked\nunless --show-secrets is given. Defaults to paths.credentials.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCredentialsDecode,
}

func runCredentialsEncode(cmd *cobra.Command, args []string) error {
	line, err := credential.EncodeLine(args)
	if err != nil {
		return err
	}
	if !credAppend {
		fmt.Fprintln(cmd.OutOrStdout(), line)
		return nil
	}

	f, err := os.OpenFile(cfg.Paths.Credentials, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Appended record for %s %s to %s\n", args[3], args[2], cfg.Paths.Credentials)
	return nil
}

type decodedRecord struct {
	Line   int      `json:"line"`
	Fields []string `json:"fields"`
}

func runCredentialsDecode(cmd *cobra.Command, args []string) error {
	path := cfg.Paths.Credentials
	if len(args) == 1 {
		path = args[0]
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open credential file: %w", err)
	}
	defer func() { _ = f.Close() }()

	records := []decodedRecord{}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		fields, err := credential.DecodeLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		if !credShowSecrets && len(fields) > 0 {
			fields[0] = "****"
		}
		records = append(records, decodedRecord{Line: lineNum, Fields: fields})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read credential file: %w", err)
	}

	out, _ := json.MarshalIndent(records, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
