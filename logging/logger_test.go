package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Info, "kernel", newJSONOutput(&buf))
	l.Info("started")

	var entry Entry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON, got error: %v (body: %s)", err, buf.String())
	}
	if entry.Component != "kernel" || entry.Message != "started" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warn, "kernel", newJSONOutput(&buf))
	l.Debug("should not appear")
	l.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below the configured level, got: %s", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("expected output at or above the configured level")
	}
}

func TestLoggerWithContextCarriesMetadata(t *testing.T) {
	var buf bytes.Buffer
	l := New(Info, "kernel", newJSONOutput(&buf)).With("txn_id", "t1")
	l.Info("committed")

	if !strings.Contains(buf.String(), "t1") {
		t.Errorf("expected context to appear in logged entry, got: %s", buf.String())
	}
}

func TestTextOutputFormatsALine(t *testing.T) {
	var buf bytes.Buffer
	l := New(Info, "kernel", newTextOutput(&buf))
	l.Info("hello")
	if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "kernel") {
		t.Errorf("unexpected text line: %s", buf.String())
	}
}
