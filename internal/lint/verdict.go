// Package lint defines the verdict model, document context, checks, and
// reports shared by every linting subsystem.
package lint

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome class of a single verdict.
type Status string

// Verdict statuses, ordered by display severity.
const (
	StatusPass Status = "PASS"
	StatusInfo Status = "INFO"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

// Severity ranks statuses for display. It carries no ordering guarantee
// between verdicts of different checks.
func (s Status) Severity() int {
	switch s {
	case StatusPass:
		return 0
	case StatusInfo:
		return 1
	case StatusWarn:
		return 2
	case StatusFail:
		return 3
	default:
		return -1
	}
}

// ActualExpected is a structured message meant for diff-style presentation.
type ActualExpected struct {
	Actual   string `json:"actual"`
	Expected string `json:"expected"`
}

// Message is either free text or an actual/expected pair. The zero value is
// the empty message.
type Message struct {
	text string
	diff *ActualExpected
}

// Text builds a free-text message.
func Text(s string) Message {
	return Message{text: s}
}

// Diff builds an actual/expected message.
func Diff(actual, expected string) Message {
	return Message{diff: &ActualExpected{Actual: actual, Expected: expected}}
}

// IsZero reports whether the message is empty.
func (m Message) IsZero() bool {
	return m.text == "" && m.diff == nil
}

// Diff returns the actual/expected pair when the message is structured.
func (m Message) Diff() (ActualExpected, bool) {
	if m.diff == nil {
		return ActualExpected{}, false
	}
	return *m.diff, true
}

// String renders the message as plain text.
func (m Message) String() string {
	if m.diff != nil {
		return fmt.Sprintf("actual [%s], expected [%s]", m.diff.Actual, m.diff.Expected)
	}
	return m.text
}

// MarshalJSON encodes text as a JSON string and diffs as an object.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.diff != nil {
		return json.Marshal(m.diff)
	}
	return json.Marshal(m.text)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*m = Text(text)
		return nil
	}
	var diff ActualExpected
	if err := json.Unmarshal(data, &diff); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	*m = Message{diff: &diff}
	return nil
}

// MarshalYAML mirrors the JSON shape.
func (m Message) MarshalYAML() (any, error) {
	if m.diff != nil {
		return m.diff, nil
	}
	return m.text, nil
}

// Verdict is the immutable outcome of one check or sub-check.
type Verdict struct {
	Status  Status  `json:"status" yaml:"status"`
	Message Message `json:"message,omitzero" yaml:"message,omitempty"`
}

// Pass returns a passing verdict. It carries no message.
func Pass() Verdict {
	return Verdict{Status: StatusPass}
}

// Fail returns a failing verdict with a free-text message.
func Fail(msg string) Verdict {
	return Verdict{Status: StatusFail, Message: Text(msg)}
}

// Failf formats a failing verdict.
func Failf(format string, args ...any) Verdict {
	return Fail(fmt.Sprintf(format, args...))
}

// FailDiff returns a failing verdict with an actual/expected message.
func FailDiff(actual, expected string) Verdict {
	return Verdict{Status: StatusFail, Message: Diff(actual, expected)}
}

// Warn returns a warning verdict.
func Warn(msg string) Verdict {
	return Verdict{Status: StatusWarn, Message: Text(msg)}
}

// Warnf formats a warning verdict.
func Warnf(format string, args ...any) Verdict {
	return Warn(fmt.Sprintf(format, args...))
}

// Info returns an informational verdict.
func Info(msg string) Verdict {
	return Verdict{Status: StatusInfo, Message: Text(msg)}
}

// Infof formats an informational verdict.
func Infof(format string, args ...any) Verdict {
	return Info(fmt.Sprintf(format, args...))
}

// IsPass reports whether the verdict passed.
func (v Verdict) IsPass() bool {
	return v.Status == StatusPass
}

// String renders the verdict for logs.
func (v Verdict) String() string {
	if v.Message.IsZero() {
		return string(v.Status)
	}
	return fmt.Sprintf("%s: %s", v.Status, v.Message)
}

// NonPass drops passing verdicts. The result is never nil, so an empty list
// is the canonical fully-passing result of a multi-verdict check.
func NonPass(verdicts []Verdict) []Verdict {
	out := make([]Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if !v.IsPass() {
			out = append(out, v)
		}
	}
	return out
}
