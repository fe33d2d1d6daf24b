package lint

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Report maps check identifiers to outcomes. It is built once per run by
// the runner and is read-only afterwards.
type Report struct {
	entries map[string]Outcome
}

// NewReport builds a report from identifier/outcome pairs.
func NewReport(entries map[string]Outcome) *Report {
	cp := make(map[string]Outcome, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &Report{entries: cp}
}

// Len returns the number of entries.
func (r *Report) Len() int {
	return len(r.entries)
}

// Get returns the outcome recorded for id.
func (r *Report) Get(id string) (Outcome, bool) {
	o, ok := r.entries[id]
	return o, ok
}

// IDs returns the identifiers in sorted order.
func (r *Report) IDs() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Failed returns the sorted identifiers whose outcome is not a full pass.
func (r *Report) Failed() []string {
	var ids []string
	for _, id := range r.IDs() {
		if !r.entries[id].Passed() {
			ids = append(ids, id)
		}
	}
	return ids
}

// Summary renders the comma-joined identifiers that did not pass.
func (r *Report) Summary() string {
	return strings.Join(r.Failed(), ",")
}

// Worst returns the most severe status across all entries.
func (r *Report) Worst() Status {
	worst := StatusPass
	for _, o := range r.entries {
		if s := o.Verdict().Status; s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst
}

// MarshalJSON encodes the report as an object keyed by identifier.
func (r *Report) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(r.entries)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes a report produced by MarshalJSON.
func (r *Report) UnmarshalJSON(data []byte) error {
	entries := map[string]Outcome{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	r.entries = entries
	return nil
}

// MarshalYAML encodes the report as a mapping; yaml.v3 sorts map keys.
func (r *Report) MarshalYAML() (any, error) {
	return r.entries, nil
}
