package storage

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"bundleKeeper/internal/model"
)

// Journal records what a run did.
type Journal interface {
	PutSubmissions(ctx context.Context, run string, results []model.SubmissionResult) error
	PutBundle(ctx context.Context, bundle model.BundleRecord) error
}

// Entry is one journal line.
type Entry struct {
	Kind       string                  `json:"kind"`
	Run        string                  `json:"run,omitempty"`
	RecordedAt time.Time               `json:"recorded_at"`
	Submission *model.SubmissionResult `json:"submission,omitempty"`
	Bundle     *model.BundleRecord     `json:"bundle,omitempty"`
}

const (
	KindSubmission = "submission"
	KindBundle     = "bundle"
)

// Multi writes to every journal and returns all failures combined.
type Multi []Journal

func (m Multi) PutSubmissions(ctx context.Context, run string, results []model.SubmissionResult) error {
	var err error
	for _, j := range m {
		if j == nil {
			continue
		}
		err = multierr.Append(err, j.PutSubmissions(ctx, run, results))
	}
	return err
}

func (m Multi) PutBundle(ctx context.Context, bundle model.BundleRecord) error {
	var err error
	for _, j := range m {
		if j == nil {
			continue
		}
		err = multierr.Append(err, j.PutBundle(ctx, bundle))
	}
	return err
}
