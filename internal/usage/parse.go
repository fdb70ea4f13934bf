package usage

import (
	"encoding/json"
	"strings"
	"time"
)

type jsonlRecord struct {
	Type      string    `json:"type"`
	Timestamp string    `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	RequestID string    `json:"requestId"`
	Message   *jsonlMsg `json:"message"`
}

type jsonlMsg struct {
	ID    string      `json:"id"`
	Model string      `json:"model"`
	Usage *jsonlUsage `json:"usage"`
}

type jsonlUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// ParseLine decodes one JSONL line into an Entry. It returns false for
// lines that carry no billable usage: blank lines, malformed JSON,
// non-assistant records, records without a model or usage block, the
// synthetic placeholder model, and usage blocks where every token count
// is zero.
// An unparseable timestamp falls back to now rather than rejecting.
func ParseLine(line string, now time.Time) (Entry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Entry{}, false
	}

	var rec jsonlRecord
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return Entry{}, false
	}

	if rec.Type != "assistant" {
		return Entry{}, false
	}
	if rec.Message == nil || rec.Message.Usage == nil {
		return Entry{}, false
	}
	if rec.Message.Model == "" || rec.Message.Model == SyntheticModel {
		return Entry{}, false
	}

	u := rec.Message.Usage
	if u.InputTokens == 0 && u.OutputTokens == 0 &&
		u.CacheCreationInputTokens == 0 && u.CacheReadInputTokens == 0 {
		return Entry{}, false
	}

	return Entry{
		ID:                  rec.Message.ID + ":" + rec.RequestID,
		Timestamp:           parseTimestamp(rec.Timestamp, now),
		SessionID:           rec.SessionID,
		Model:               rec.Message.Model,
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}, true
}

// ParseLines decodes a batch of lines, dropping rejects.
func ParseLines(lines []string, now time.Time) []Entry {
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if entry, ok := ParseLine(line, now); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseTimestamp(raw string, now time.Time) time.Time {
	if raw == "" {
		return now
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return now
}
