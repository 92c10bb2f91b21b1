package lbl

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Label files and the label data files written from them are
// Windows-1250 text. Lines are kept as raw bytes; text that comes from
// elsewhere must be encoded before it is placed into a record.

// ErrUnencodable means a string has a character with no Windows-1250 byte.
var ErrUnencodable = errors.New("text cannot be written as windows-1250")

// EncodeText converts UTF-8 s to the Windows-1250 bytes used in label files.
func EncodeText(s string) (string, error) {
	out, err := charmap.Windows1250.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnencodable, s)
	}
	return out, nil
}

// DecodeText converts Windows-1250 label text to UTF-8 for display.
func DecodeText(s string) string {
	out, err := charmap.Windows1250.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
