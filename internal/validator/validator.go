// Package validator checks a page's markup against the AMP document rules.
package validator

import (
	"context"
	"fmt"
	"strings"
)

// Result statuses.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// Issue codes reported by Structural.
const (
	CodeMandatoryTagMissing  = "MANDATORY_TAG_MISSING"
	CodeMandatoryAttrMissing = "MANDATORY_ATTR_MISSING"
	CodeInvalidAttrValue     = "INVALID_ATTR_VALUE"
	CodeDisallowedTag        = "DISALLOWED_TAG"
	CodeDisallowedScript     = "DISALLOWED_SCRIPT"
	CodeDuplicateUniqueTag   = "DUPLICATE_UNIQUE_TAG"
	CodeStylesheetTooLong    = "STYLESHEET_TOO_LONG"
)

// Issue is one markup violation. Line and Col are 1-based and zero when the
// position is unknown.
type Issue struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Line == 0 {
		return fmt.Sprintf("%s %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%d:%d %s %s", i.Line, i.Col, i.Code, i.Message)
}

// Result is the outcome of validating one document.
type Result struct {
	Status string  `json:"status"`
	Errors []Issue `json:"errors"`
}

// Passed reports a conforming document.
func (r Result) Passed() bool {
	return r.Status == StatusPass
}

// Describe renders the issues on one line.
func (r Result) Describe() string {
	parts := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		parts = append(parts, issue.String())
	}
	return strings.Join(parts, "; ")
}

// Validator validates raw HTML.
type Validator interface {
	Validate(ctx context.Context, html string) (Result, error)
}
