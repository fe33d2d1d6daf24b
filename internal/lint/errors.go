package lint

import (
	"errors"
	"fmt"
)

// Error classes raised inside checks. They are wrapped with %w and never
// escape a check boundary; the boundary turns them into FAIL verdicts.
var (
	ErrNetwork        = errors.New("network error")
	ErrHTTPStatus     = errors.New("unexpected http status")
	ErrContentType    = errors.New("unexpected content-type")
	ErrParse          = errors.New("parse error")
	ErrValidation     = errors.New("validation error")
	ErrGeometry       = errors.New("geometry mismatch")
	ErrMissingElement = errors.New("missing element")
)

// StatusError reports a response status outside the required class.
type StatusError struct {
	URL  string
	Code int
	Want string
}

func (e *StatusError) Error() string {
	want := e.Want
	if want == "" {
		want = "2xx"
	}
	return fmt.Sprintf("expected status code: [%s], actual [%d]", want, e.Code)
}

// Is lets errors.Is match ErrHTTPStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrHTTPStatus
}
