package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Виды замечаний к качеству сценария.
const (
	IssueUnknownSpeaker   = "unknown_speaker"
	IssueInvalidTimestamp = "invalid_timestamp"
	IssueTimestampOrder   = "timestamp_order"
)

// QualityIssue - замечание к сценарию, которое не делает главу неуспешной.
type QualityIssue struct {
	Kind      string `json:"kind"`
	LineIndex int    `json:"lineIndex"`
	Detail    string `json:"detail"`
}

// InspectScript проверяет мягкие контракты сценария: метки говорящих и порядок MM:SS.
// allowed - допустимые метки; в режиме нарратива это только NarratorLabel.
func InspectScript(script []ScriptLine, allowed []string) []QualityIssue {
	known := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		known[c] = struct{}{}
	}

	var issues []QualityIssue
	prev := -1
	for i, line := range script {
		if _, ok := known[line.Character]; !ok {
			issues = append(issues, QualityIssue{
				Kind:      IssueUnknownSpeaker,
				LineIndex: i,
				Detail:    fmt.Sprintf("speaker %q is not declared", line.Character),
			})
		}

		sec, ok := ParseTimestamp(line.Timestamp)
		if !ok {
			issues = append(issues, QualityIssue{
				Kind:      IssueInvalidTimestamp,
				LineIndex: i,
				Detail:    fmt.Sprintf("timestamp %q is not MM:SS", line.Timestamp),
			})
			continue
		}
		if sec < prev {
			issues = append(issues, QualityIssue{
				Kind:      IssueTimestampOrder,
				LineIndex: i,
				Detail:    fmt.Sprintf("timestamp %s goes back in time", line.Timestamp),
			})
		}
		prev = sec
	}
	return issues
}

// ParseTimestamp разбирает "MM:SS" в секунды.
func ParseTimestamp(ts string) (int, bool) {
	mm, ss, found := strings.Cut(strings.TrimSpace(ts), ":")
	if !found {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 {
		return 0, false
	}
	s, err := strconv.Atoi(ss)
	if err != nil || s < 0 || s > 59 || len(ss) != 2 {
		return 0, false
	}
	return m*60 + s, true
}
