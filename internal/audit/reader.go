package audit

import (
	"bufio"
	"fmt"
	"os"
)

// maxLineSize bounds one JSONL entry.
const maxLineSize = 1024 * 1024

// scanLines calls fn with each line of the file at path and its 1-based
// number. The slice passed to fn is only valid during the call. A non-nil
// error from fn stops the scan and is returned unchanged.
func scanLines(path string, fn func(num int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	num := 0
	for scanner.Scan() {
		num++
		if err := fn(num, scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	return nil
}

// tailHash returns the chain hash that the next entry of the log at path
// must reference: GenesisHash for a missing or empty log.
func tailHash(path string) (string, error) {
	tail := GenesisHash
	err := scanLines(path, func(_ int, line []byte) error {
		if len(line) > 0 {
			tail = HashLine(line)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return GenesisHash, nil
	}
	return tail, err
}
