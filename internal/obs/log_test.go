package obs

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogRequestEmitsJSONLine(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogRequest(map[string]any{
		"msg":    "request_complete",
		"path":   "/v1/stats",
		"status": 200,
	})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["path"] != "/v1/stats" || entry["status"] != float64(200) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestLogRequestSurvivesUnserializableEntry(t *testing.T) {
	logger := Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	LogRequest(map[string]any{"bad": func() {}})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("fallback line is not valid JSON: %v", err)
	}
	if entry["level"] != "error" {
		t.Fatalf("expected error fallback, got %v", entry)
	}
}
