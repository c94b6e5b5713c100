package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]string
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN, false)

	l.Info("dropped")
	l.Warn("kept", "k", 1)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["msg"] != "kept" || lines[0]["level"] != "WARN" || lines[0]["k"] != "1" {
		t.Errorf("unexpected entry: %v", lines[0])
	}
}

func TestLogger_WithCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, false).With("list_id", "L1")
	child := l.With("step", "match")

	child.Debug("hello", "err", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if lines[0]["list_id"] != "L1" || lines[0]["step"] != "match" || lines[0]["err"] != "boom" {
		t.Errorf("fields not carried: %v", lines[0])
	}
}

func TestLogger_RedactsPII(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG, true)

	l.Info("dup", "email", "john.doe@example.com", "name", "Jo Bloggs", "detail", "owner is ann@example.org")

	e := decodeLines(t, &buf)[0]
	if e["email"] != "jo***@example.com" {
		t.Errorf("email = %q", e["email"])
	}
	if e["name"] != "J. B." {
		t.Errorf("name = %q", e["name"])
	}
	if e["detail"] != "owner is an***@example.org" {
		t.Errorf("detail = %q", e["detail"])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DEBUG, "WARN": WARN, "error": ERROR, "": INFO, "nonsense": INFO}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRedactEmail(t *testing.T) {
	if got := RedactEmail("ab@example.com"); got != "***@example.com" {
		t.Errorf("RedactEmail short = %q", got)
	}
	if got := RedactEmail("not-an-email"); got != "***@***" {
		t.Errorf("RedactEmail invalid = %q", got)
	}
}
