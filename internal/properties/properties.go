// Package properties reads and writes the line-oriented `key=value` text
// format used by file-backed option stores.
//
// The format is UTF-8. Blank lines and lines whose first non-space character
// is `#` are comments. The first `=` splits the key from the value and both
// are trimmed. Lines without `=` are ignored. There is no escaping and no line
// continuation.
package properties

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

const bom = "\uFEFF"

// Pair is one key and its text, in write order.
type Pair struct {
	Key   string
	Value string
}

// Parse reads every pair in r. A later duplicate key replaces an earlier one.
func Parse(r io.Reader) (map[string]string, error) {
	out := map[string]string{}
	reader := bufio.NewReader(r)
	first := true
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if first {
				line = strings.TrimPrefix(line, bom)
			}
			first = false
			if key, value, ok := parseLine(line); ok {
				out[key] = value
			}
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func parseLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}

// Header renders the first line written for set name at t.
func Header(name string, t time.Time) string {
	return fmt.Sprintf("# [%s], modified on %s", name, t.Format(time.UnixDate))
}

// Write emits header, when non-empty, followed by one line per pair.
func Write(w io.Writer, header string, pairs []Pair) error {
	buffered := bufio.NewWriter(w)
	if header != "" {
		if !strings.HasPrefix(header, "#") {
			header = "# " + header
		}
		if _, err := buffered.WriteString(header + "\n"); err != nil {
			return err
		}
	}
	for _, pair := range pairs {
		if strings.ContainsAny(pair.Key, "=\n\r") || strings.ContainsAny(pair.Value, "\n\r") {
			return fmt.Errorf("properties: pair %q cannot be written on one line", pair.Key)
		}
		if _, err := buffered.WriteString(pair.Key + "=" + pair.Value + "\n"); err != nil {
			return err
		}
	}
	return buffered.Flush()
}
