package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error kinds. Every error returned by the planning and submission packages
// wraps exactly one of these so callers can branch with errors.Is.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidRange     = errors.New("invalid tick range")
	ErrMathOverflow     = errors.New("math overflow")
	ErrStateFetch       = errors.New("state fetch failed")
	ErrSwapQuote        = errors.New("swap quote failed")
	ErrSigningRejected  = errors.New("signing rejected")
	ErrSubmission       = errors.New("submission failed")
)

// BatchError attaches batch context to a failure.
type BatchError struct {
	Kind            error
	Description     string
	PositionIndices []int
	Err             error
}

func (e *BatchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Description != "" {
		fmt.Fprintf(&b, " (%s", e.Description)
		if len(e.PositionIndices) > 0 {
			b.WriteString("; positions ")
			b.WriteString(JoinIndices(e.PositionIndices))
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// JoinIndices renders position indices as "1, 2, 3".
func JoinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ", ")
}
