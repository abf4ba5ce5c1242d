// Package capture parses append-only JSONL capture streams into
// normalized records, applying redaction and importance autograde
// before the ingest pipeline writes them to the ledger.
package capture

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Event is one parsed line of a capture stream, validated against the
// required-field contract (ts, kind, and a derivable summary).
type Event struct {
	TS         time.Time
	Kind       string
	ToolName   string
	ToolCallID string
	SessionKey string
	AgentID    string
	IsSynthetic bool
	Summary    string
	Message    *Message
	Detail     json.RawMessage
}

// Message mirrors the JSONL schema's optional message.content block.
type Message struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one entry of message.content; only "text" blocks
// contribute to summary extraction.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rawEvent struct {
	TS          string          `json:"ts"`
	Kind        string          `json:"kind"`
	ToolName    string          `json:"tool_name"`
	ToolCallID  string          `json:"tool_call_id"`
	SessionKey  string          `json:"session_key"`
	AgentID     string          `json:"agent_id"`
	IsSynthetic bool            `json:"is_synthetic"`
	Summary     string          `json:"summary"`
	Message     *Message        `json:"message"`
	Detail      json.RawMessage `json:"detail"`
}

// ParseResult is the outcome of scanning a capture stream.
type ParseResult struct {
	Events      []Event
	TotalSeen   int
	ParseErrors int
}

const maxSummaryChars = 200

// Parse reads newline-delimited JSON capture events from r. Lines that
// fail to parse or are missing required fields are counted in
// ParseErrors and skipped; they do not abort the scan.
func Parse(r io.Reader) (ParseResult, error) {
	var result ParseResult
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		result.TotalSeen++

		var raw rawEvent
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			result.ParseErrors++
			continue
		}

		ev, ok := normalize(raw)
		if !ok {
			result.ParseErrors++
			continue
		}
		result.Events = append(result.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("capture: scan: %w", err)
	}
	return result, nil
}

func normalize(raw rawEvent) (Event, bool) {
	if raw.Kind == "" {
		return Event{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw.TS)
	if err != nil {
		return Event{}, false
	}

	summary := raw.Summary
	if summary == "" {
		summary = extractSummary(raw.Message)
	}
	if summary == "" {
		return Event{}, false
	}
	if len(summary) > maxSummaryChars {
		summary = truncateRunes(summary, maxSummaryChars)
	}

	return Event{
		TS:          ts,
		Kind:        raw.Kind,
		ToolName:    raw.ToolName,
		ToolCallID:  raw.ToolCallID,
		SessionKey:  raw.SessionKey,
		AgentID:     raw.AgentID,
		IsSynthetic: raw.IsSynthetic,
		Summary:     summary,
		Message:     raw.Message,
		Detail:      raw.Detail,
	}, true
}

// extractSummary derives a summary from the first text content block.
func extractSummary(msg *Message) string {
	if msg == nil {
		return ""
	}
	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text)
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
