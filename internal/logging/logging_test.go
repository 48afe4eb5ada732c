package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "debug", "json")

	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %s", logger.GetLevel())
	}

	logger.WithField("quote_id", "q-1").Info("quote matched")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["quote_id"] != "q-1" || entry["msg"] != "quote matched" {
		t.Errorf("Unexpected log entry: %v", entry)
	}
}

func TestNewTextFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "chatty", "text")

	if logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info level for unknown input, got %s", logger.GetLevel())
	}

	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}
