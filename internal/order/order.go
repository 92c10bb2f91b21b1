// Package order opens work orders. A work order is a pair of files in the
// orders directory: {code}.nor names the product, {code}.lbl carries the
// label lines for every serial of the order.
package order

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/packingline/internal/lbl"
)

const (
	labelExt = ".lbl"
	norExt   = ".nor"
)

var (
	ErrEmptyCode     = errors.New("work order code is empty")
	ErrFilesMissing  = errors.New("work order files not found")
	ErrBadNor        = errors.New("work order .nor line has unexpected format")
	ErrOrderMismatch = errors.New("work order in .nor file does not match input")
)

// MismatchError reports a .nor file that belongs to a different order.
type MismatchError struct {
	Input string
	InNor string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("work order in .nor file (%s) does not match input (%s)", e.InNor, e.Input)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrOrderMismatch
}

// WorkOrder is an opened work order. Lines are read once at open time
// and shared by every print of the order.
type WorkOrder struct {
	Code      string
	Product   string
	LabelPath string
	NorPath   string
	Lines     lbl.Lines
}

// NormalizeCode trims and upper-cases an entered order code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Paths returns the .lbl and .nor paths of code under ordersDir.
func Paths(ordersDir, code string) (labelPath, norPath string) {
	return filepath.Join(ordersDir, code+labelExt), filepath.Join(ordersDir, code+norExt)
}

// Open validates the .nor file of code and loads its label lines.
func Open(ordersDir, code string) (*WorkOrder, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrEmptyCode
	}
	if strings.ContainsAny(code, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrBadNor, code)
	}

	labelPath, norPath := Paths(ordersDir, code)
	for _, p := range []string{labelPath, norPath} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s or %s", ErrFilesMissing, labelPath, norPath)
			}
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
	}

	norCode, product, err := readNor(norPath)
	if err != nil {
		return nil, err
	}
	if norCode != code {
		return nil, &MismatchError{Input: code, InNor: norCode}
	}

	lines, err := lbl.Load(labelPath)
	if err != nil {
		return nil, err
	}

	return &WorkOrder{
		Code:      code,
		Product:   product,
		LabelPath: labelPath,
		NorPath:   norPath,
		Lines:     lines,
	}, nil
}

// readNor parses the first line of a .nor file: $CODE;PRODUCT[;...].
func readNor(path string) (code, product string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("open nor file: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	first := ""
	if scanner.Scan() {
		first = strings.TrimSpace(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("read nor file: %w", err)
	}

	parts := strings.Split(first, ";")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: %s", ErrBadNor, path)
	}
	code = strings.ToUpper(strings.TrimLeft(parts[0], "$"))
	product = strings.TrimSpace(parts[1])
	return code, product, nil
}
