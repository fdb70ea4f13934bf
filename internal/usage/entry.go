package usage

import (
	"strings"
	"time"
	"unicode"
)

// SyntheticModel is the placeholder model name Claude Code writes for
// locally generated turns. Entries carrying it are never real usage.
const SyntheticModel = "<synthetic>"

// Entry is one parsed assistant-turn usage record. Immutable once built.
type Entry struct {
	ID                  string    `json:"id"` // messageId:requestId
	Timestamp           time.Time `json:"timestamp"`
	SessionID           string    `json:"session_id"`
	Model               string    `json:"model"`
	InputTokens         int       `json:"input_tokens"`
	OutputTokens        int       `json:"output_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens"`
}

func (e Entry) TotalTokens() int {
	return e.InputTokens + e.OutputTokens
}

var modelFamilies = []string{"opus", "sonnet", "haiku"}

// ModelShortName maps a raw model identifier to a short family-version
// label: "claude-sonnet-4-5-20250929" → "sonnet-4.5". When no known
// family token matches, the "claude-" prefix and any trailing date
// suffix (8+ digits) are stripped instead.
func (e Entry) ModelShortName() string {
	lower := strings.ToLower(e.Model)

	for _, family := range modelFamilies {
		idx := strings.Index(lower, family)
		if idx < 0 {
			continue
		}

		rest := lower[idx+len(family):]
		var version []string
		for _, seg := range strings.Split(rest, "-") {
			if seg == "" {
				continue
			}
			if len(seg) <= 2 && allDigits(seg) {
				version = append(version, seg)
			} else {
				break
			}
		}

		if len(version) == 0 {
			return family
		}
		return family + "-" + strings.Join(version, ".")
	}

	name := e.Model
	if strings.HasPrefix(lower, "claude-") {
		name = name[len("claude-"):]
	}
	if lastDash := strings.LastIndex(name, "-"); lastDash >= 0 {
		suffix := name[lastDash+1:]
		if len(suffix) >= 8 && allDigits(suffix) {
			name = name[:lastDash]
		}
	}
	return name
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
