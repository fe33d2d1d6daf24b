package lint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Check is one named validation unit. Run must not mutate the document and
// must always return an outcome; errors are reported as FAIL verdicts.
type Check interface {
	Name() string
	Run(ctx context.Context, doc *Document) Outcome
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Outcome is the result of one check: a single verdict, or a list holding
// only the non-passing verdicts of a multi-issue check.
type Outcome struct {
	single Verdict
	list   []Verdict
	multi  bool
}

// One wraps a single verdict.
func One(v Verdict) Outcome {
	return Outcome{single: v}
}

// Many wraps the verdicts of a multi-issue check, dropping passes.
func Many(verdicts []Verdict) Outcome {
	return Outcome{list: NonPass(verdicts), multi: true}
}

// IsList reports whether the outcome came from a multi-issue check.
func (o Outcome) IsList() bool {
	return o.multi
}

// Verdict returns the single verdict. For list outcomes it returns the
// most severe entry, or PASS when the list is empty.
func (o Outcome) Verdict() Verdict {
	if !o.multi {
		return o.single
	}
	worst := Pass()
	for _, v := range o.list {
		if v.Status.Severity() > worst.Status.Severity() {
			worst = v
		}
	}
	return worst
}

// Verdicts returns the non-passing verdicts of the outcome.
func (o Outcome) Verdicts() []Verdict {
	if o.multi {
		return append([]Verdict(nil), o.list...)
	}
	if o.single.IsPass() {
		return []Verdict{}
	}
	return []Verdict{o.single}
}

// Passed reports full pass: a PASS verdict or an empty list.
func (o Outcome) Passed() bool {
	if o.multi {
		return len(o.list) == 0
	}
	return o.single.IsPass()
}

// MarshalJSON encodes a single outcome as its verdict and a list outcome as
// an array.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.multi {
		return json.Marshal(o.list)
	}
	return json.Marshal(o.single)
}

// UnmarshalJSON restores either encoding.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []Verdict
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode outcome list: %w", err)
		}
		*o = Many(list)
		return nil
	}
	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode outcome: %w", err)
	}
	*o = One(v)
	return nil
}

// MarshalYAML mirrors the JSON shape.
func (o Outcome) MarshalYAML() (any, error) {
	if o.multi {
		return o.list, nil
	}
	return o.single, nil
}

// SingleFunc is the body of a single-verdict check.
type SingleFunc func(ctx context.Context, doc *Document) (Verdict, error)

// MultiFunc is the body of a multi-issue check.
type MultiFunc func(ctx context.Context, doc *Document) ([]Verdict, error)

// Single adapts fn into a Check. Errors and panics raised by fn become a
// FAIL verdict for the check.
func Single(name string, fn SingleFunc) Check {
	return singleCheck{name: name, fn: fn}
}

// Multi adapts fn into a Check whose outcome lists only non-passing
// verdicts. An error or panic becomes a one-element FAIL list.
func Multi(name string, fn MultiFunc) Check {
	return multiCheck{name: name, fn: fn}
}

type singleCheck struct {
	name string
	fn   SingleFunc
}

func (c singleCheck) Name() string { return c.name }

func (c singleCheck) Run(ctx context.Context, doc *Document) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = One(PanicVerdict(rec))
		}
	}()
	v, err := c.fn(ctx, doc)
	if err != nil {
		return One(ErrorVerdict(err))
	}
	return One(v)
}

type multiCheck struct {
	name string
	fn   MultiFunc
}

func (c multiCheck) Name() string { return c.name }

func (c multiCheck) Run(ctx context.Context, doc *Document) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			out = Many([]Verdict{PanicVerdict(rec)})
		}
	}()
	verdicts, err := c.fn(ctx, doc)
	if err != nil {
		return Many([]Verdict{ErrorVerdict(err)})
	}
	return Many(verdicts)
}

// ErrorVerdict converts an error raised inside a check into a FAIL.
func ErrorVerdict(err error) Verdict {
	return Fail(err.Error())
}

// PanicVerdict converts a recovered panic into a FAIL.
func PanicVerdict(rec any) Verdict {
	return Failf("check aborted: %v", rec)
}

// Identifier derives the report key of a check: the name without a leading
// "test" prefix, lower-cased.
func Identifier(name string) string {
	if len(name) >= 4 && strings.EqualFold(name[:4], "test") {
		name = name[4:]
	}
	return strings.ToLower(name)
}
