// Package report publishes the outcome of sync runs: to the structured log,
// as JSON objects in S3, and as run history items in DynamoDB.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
	"github.com/ignite/listsync/internal/service/listsync"
)

// Status values of a run report.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Report is the published record of one list run.
type Report struct {
	RunID       string              `json:"run_id"`
	ListID      string              `json:"list_id"`
	Direction   domain.Direction    `json:"direction"`
	Step        listsync.Step       `json:"step"`
	Status      string              `json:"status"`
	Error       string              `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	DurationMS  int64               `json:"duration_ms"`
	Mutations   int                 `json:"mutations"`
	Quarantined int                 `json:"quarantined"`
	Stats       *listsync.SyncStats `json:"stats,omitempty"`
}

// NewRunID returns a fresh identifier shared by every report of one
// process invocation.
func NewRunID() string { return uuid.New().String() }

// FromResult builds the report of one list result.
func FromResult(runID string, dir domain.Direction, step listsync.Step, res listsync.ListResult) Report {
	r := Report{
		RunID:     runID,
		ListID:    res.ListID,
		Direction: dir,
		Step:      step,
		Status:    StatusOK,
		Stats:     res.Stats,
	}
	switch {
	case res.Skipped:
		r.Status = StatusSkipped
	case res.Err != nil:
		r.Status = StatusFailed
		r.Error = res.Err.Error()
	}
	if s := res.Stats; s != nil {
		r.StartedAt = s.StartedAt
		r.FinishedAt = s.FinishedAt
		r.DurationMS = s.Duration().Milliseconds()
		r.Mutations = s.Mutations()
		r.Quarantined = s.Match.Failures
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
		r.FinishedAt = r.StartedAt
	}
	return r
}

// Sink receives run reports.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}

// MultiSink publishes to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAll publishes one report per list result. Sink errors are logged
// so a reporting outage never fails a run.
func PublishAll(ctx context.Context, sink Sink, runID string, dir domain.Direction, step listsync.Step, results []listsync.ListResult) []Report {
	out := make([]Report, 0, len(results))
	for _, res := range results {
		r := FromResult(runID, dir, step, res)
		if err := sink.Publish(ctx, r); err != nil {
			logger.Error("publish run report failed", "list_id", r.ListID, "run_id", runID, "error", err.Error())
		}
		out = append(out, r)
	}
	return out
}

// LogSink writes a one-line summary of each report.
type LogSink struct{ Log *logger.Logger }

func (s LogSink) Publish(_ context.Context, r Report) error {
	l := s.Log
	if l == nil {
		l = logger.Default()
	}
	fields := []interface{}{
		"run_id", r.RunID, "list_id", r.ListID, "direction", string(r.Direction),
		"step", string(r.Step), "status", r.Status, "duration_ms", r.DurationMS,
		"mutations", r.Mutations, "quarantined", r.Quarantined,
	}
	if r.Error != "" {
		l.Error("sync run finished", append(fields, "error", r.Error)...)
		return nil
	}
	l.Info("sync run finished", fields...)
	return nil
}
