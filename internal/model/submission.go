package model

import (
	"errors"
	"time"

	"go.uber.org/multierr"
)

// SubmissionResult is the outcome of one transaction in a pipeline run.
type SubmissionResult struct {
	Index           int       `json:"index"`
	Description     string    `json:"description"`
	PositionIndices []int     `json:"position_indices"`
	Signature       string    `json:"signature,omitempty"`
	Attempted       bool      `json:"attempted"`
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at,omitempty"`
	ConfirmedAt     time.Time `json:"confirmed_at,omitempty"`

	Err error `json:"-"`
}

// SubmissionSummary is returned by the submission entry point.
type SubmissionSummary struct {
	Results      []SubmissionResult `json:"results"`
	SuccessCount int                `json:"success_count"`
	Total        int                `json:"total"`
}

// NewSubmissionSummary counts successes in results.
func NewSubmissionSummary(results []SubmissionResult) SubmissionSummary {
	s := SubmissionSummary{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.SuccessCount++
		}
	}
	return s
}

// Err combines the per-transaction failures, or nil when all succeeded.
func (s SubmissionSummary) Err() error {
	var err error
	for _, r := range s.Results {
		if r.Err != nil {
			err = multierr.Append(err, r.Err)
		} else if r.Attempted && !r.Success && r.Error != "" {
			err = multierr.Append(err, errors.New(r.Error))
		}
	}
	return err
}
