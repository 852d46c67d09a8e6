package state

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	opts "github.com/goliatone/go-optset"
	"github.com/goliatone/go-optset/internal/properties"
)

// codec is the on-disk format of a FileProvider.
type codec interface {
	name() string
	extension() string
	decode(r io.Reader) (map[string]string, error)
	encode(w io.Writer, set string, now time.Time, entries []opts.Entry) error
}

type propertiesCodec struct{}

func (propertiesCodec) name() string      { return "file" }
func (propertiesCodec) extension() string { return ".properties" }

func (propertiesCodec) decode(r io.Reader) (map[string]string, error) {
	return properties.Parse(r)
}

func (propertiesCodec) encode(w io.Writer, set string, now time.Time, entries []opts.Entry) error {
	pairs := make([]properties.Pair, len(entries))
	for i, entry := range entries {
		pairs[i] = properties.Pair{Key: entry.Key, Value: entry.Value}
	}
	return properties.Write(w, properties.Header(set, now), pairs)
}

// jsonHeaderKey holds the save header. It is not a valid option key, so it
// never collides with an entry.
const jsonHeaderKey = "#"

type jsonCodec struct{}

func (jsonCodec) name() string      { return "json" }
func (jsonCodec) extension() string { return ".json" }

// decode reads an object of option texts. Nested objects are flattened into
// dotted keys, scalars other than strings keep their JSON text and null is
// read as empty text.
func (jsonCodec) decode(r io.Reader) (map[string]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("state: invalid JSON document")
	}
	document := gjson.ParseBytes(raw)
	if !document.IsObject() {
		return nil, fmt.Errorf("state: JSON document must be an object, got %s", document.Type)
	}
	flattenJSON("", document, out)
	delete(out, jsonHeaderKey)
	return out, nil
}

func flattenJSON(prefix string, node gjson.Result, out map[string]string) {
	node.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		switch {
		case value.IsObject():
			flattenJSON(name, value, out)
		case value.Type == gjson.String:
			out[name] = value.String()
		case value.Type == gjson.Null:
			out[name] = ""
		default:
			out[name] = value.Raw
		}
		return true
	})
}

func (jsonCodec) encode(w io.Writer, set string, now time.Time, entries []opts.Entry) error {
	document := "{}"
	header := strings.TrimPrefix(properties.Header(set, now), "# ")
	document, err := sjson.Set(document, escapeJSONPath(jsonHeaderKey), header)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		document, err = sjson.Set(document, escapeJSONPath(entry.Key), entry.Value)
		if err != nil {
			return fmt.Errorf("state: encode %q: %w", entry.Key, err)
		}
	}
	pretty := gjson.Get(document, "@pretty").Raw
	_, err = io.WriteString(w, pretty)
	return err
}

func escapeJSONPath(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '#', '*', '?', '|', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
