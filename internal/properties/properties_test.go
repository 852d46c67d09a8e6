package properties

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	input := bom + "# [server], modified on today\n" +
		"\n" +
		"   # indented comment\n" +
		"host = localhost \n" +
		"url=http://example.org/?a=b\n" +
		"empty=\n" +
		"no delimiter here\r\n" +
		"  spaced.key  =  spaced value  \r\n" +
		"host=override"

	got, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := map[string]string{
		"host":       "override",
		"url":        "http://example.org/?a=b",
		"empty":      "",
		"spaced.key": "spaced value",
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("parse mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no pairs, got %v", got)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := Write(&buf, Header("server", when), []Pair{
		{Key: "host", Value: "localhost"},
		{Key: "paths", Value: `a\:b:c`},
		{Key: "empty", Value: ""},
	})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	want := "# [server], modified on Fri Mar  1 12:00:00 UTC 2024\n" +
		"host=localhost\n" +
		"paths=a\\:b:c\n" +
		"empty=\n"
	if buf.String() != want {
		t.Fatalf("write mismatch:\nwant: %q\n got: %q", want, buf.String())
	}

	parsed, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if parsed["paths"] != `a\:b:c` || parsed["empty"] != "" {
		t.Fatalf("unexpected round trip %v", parsed)
	}
}

func TestWriteRejectsMultiline(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, "", []Pair{{Key: "k", Value: "a\nb"}}); err == nil {
		t.Fatalf("expected error for multi-line value")
	}
	if err := Write(&buf, "", []Pair{{Key: "k=v", Value: "x"}}); err == nil {
		t.Fatalf("expected error for key containing delimiter")
	}
}
