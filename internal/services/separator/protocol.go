package separator

import (
	"encoding/json"
	"strings"
)

// Message is one decoded stdout line.
type Message struct {
	Status       string   `json:"status,omitempty"`
	Progress     *float64 `json:"progress,omitempty"`
	Message      string   `json:"message,omitempty"`
	Instrumental string   `json:"instrumental,omitempty"`
	Vocal        string   `json:"vocal,omitempty"`
	Error        string   `json:"error,omitempty"`
	Details      string   `json:"details,omitempty"`
}

const (
	StatusProgress = "progress"
	StatusStarting = "starting"
	StatusSuccess  = "success"
)

// ParseLine decodes a protocol line. Blank or malformed lines report false.
func ParseLine(line string) (Message, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Message{}, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return Message{}, false
	}
	return msg, true
}

// IsError reports whether the message carries an error.
func (m Message) IsError() bool {
	return strings.TrimSpace(m.Error) != ""
}

// ErrorText joins the error with its details.
func (m Message) ErrorText() string {
	text := strings.TrimSpace(m.Error)
	if details := strings.TrimSpace(m.Details); details != "" {
		text += ": " + details
	}
	return text
}
