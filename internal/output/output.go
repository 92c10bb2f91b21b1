// Package output writes the label data files and the zero-byte trigger
// files that the label printing suite watches for.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// My2NHeader is the fixed header row of the My2N label file.
const My2NHeader = `"L Vyrobni cislo dlouhe","L Bezpecnostni cislo","P Vyrobni cislo","P Bezpecnostni kod"`

var (
	ErrNoOutputPath   = errors.New("output file path is not configured")
	ErrTriggerDir     = errors.New("trigger directory does not exist")
	ErrBadTriggerName = errors.New("invalid trigger name")
)

// My2NRecord returns the My2N label row for serial and token.
func My2NRecord(serial, token string) string {
	return fmt.Sprintf(`"Serial number:","My2N Security Code:","%s","%s"`, serial, token)
}

// Writer writes label output files and trigger files.
type Writer struct {
	logger *zap.Logger
}

// NewWriter creates a Writer. A nil logger discards logs.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger.Named("output")}
}

// WriteLabel replaces the file at path with a header row and one record
// row. The previous file is removed first; a failed removal is logged and
// the write goes ahead.
func (w *Writer) WriteLabel(path, header, record string) error {
	if strings.TrimSpace(path) == "" {
		return ErrNoOutputPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			w.logger.Warn("could not remove old label file", zap.String("path", path), zap.Error(err))
		} else {
			w.logger.Debug("removed old label file", zap.String("path", path))
		}
	}

	data := header + "\n" + record + "\n"
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0644); err != nil {
		return fmt.Errorf("write label file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write label file: %w", err)
	}
	w.logger.Info("label file written", zap.String("path", path))
	return nil
}

// TouchTriggers creates an empty file per name in dir. Existing files are
// left untouched. The paths of all trigger files are returned.
func (w *Writer) TouchTriggers(dir string, names []string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: not configured", ErrTriggerDir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrTriggerDir, dir)
	}

	for _, name := range names {
		if err := validTriggerName(name); err != nil {
			return nil, err
		}
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return paths, fmt.Errorf("create trigger %s: %w", name, err)
		}
		_ = f.Close()
		paths = append(paths, p)
	}
	w.logger.Info("triggers created", zap.String("dir", dir), zap.Strings("names", names))
	return paths, nil
}

func validTriggerName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadTriggerName, name)
	}
	return nil
}
