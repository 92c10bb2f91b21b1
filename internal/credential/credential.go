// Package credential verifies operator passwords against the obfuscated
// credential flat file. Each line of the file is one hex-encoded record;
// the decoded record is a sequence of fields separated by NAK (0x15),
// field 0 being the plaintext secret and field 1 a comma-separated
// attribute string.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FieldSeparator separates the decoded segments of one record.
const FieldSeparator = "\x15"

// ErrUndefinedByte means the plaintext holds a byte that has no
// Windows-1250 character.
var ErrUndefinedByte = errors.New("byte not defined in windows-1250")

const (
	keyModulus = 32
	keyStep    = 5
	keyMask    = 0x06
)

// xorStream applies the position-keyed XOR stream. The key sequence
// depends only on the length of data, so applying it twice restores
// the input.
func xorStream(data []byte) []byte {
	out := make([]byte, len(data))
	k := len(data) % keyModulus
	for i, b := range data {
		out[i] = b ^ byte(k^keyMask)
		k = (k + keyStep) % keyModulus
	}
	return out
}

// Decode de-obfuscates one raw record and returns its segments.
// The plaintext is Windows-1250 text.
func Decode(data []byte) ([]string, error) {
	raw := xorStream(data)
	for i, b := range raw {
		if b >= 0x80 && charmap.Windows1250.DecodeByte(b) == utf8.RuneError {
			return nil, fmt.Errorf("%w: 0x%02X at offset %d", ErrUndefinedByte, b, i)
		}
	}
	plain, err := charmap.Windows1250.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1250: %w", err)
	}
	return strings.Split(string(plain), FieldSeparator), nil
}

// Encode is the inverse of Decode. It fails if a field contains a
// character that Windows-1250 cannot represent.
func Encode(fields []string) ([]byte, error) {
	joined := strings.Join(fields, FieldSeparator)
	raw, err := charmap.Windows1250.NewEncoder().Bytes([]byte(joined))
	if err != nil {
		return nil, fmt.Errorf("encode windows-1250: %w", err)
	}
	return xorStream(raw), nil
}

// EncodeLine returns fields as one line of the credential file (upper-case hex).
func EncodeLine(fields []string) (string, error) {
	data, err := Encode(fields)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(data)), nil
}

// DecodeLine parses one hex-encoded line of the credential file.
// Whitespace between hex digits is ignored.
func DecodeLine(line string) ([]string, error) {
	compact := strings.Join(strings.Fields(line), "")
	data, err := hex.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return Decode(data)
}

// Digest returns the SHA-256 hex digest of the UTF-8 bytes of s.
func Digest(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func digestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
