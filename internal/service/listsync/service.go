package listsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/distlock"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Step names one resumable unit of a run.
type Step string

const (
	StepCollectList Step = "collect-list"
	StepCollectCRM  Step = "collect-crm"
	StepMatch       Step = "match"
	StepReduce      Step = "reduce"
	StepReconcile   Step = "reconcile"
	StepDiscard     Step = "discard"
	StepRun         Step = "run"
)

// Steps returns the steps of a full run in order.
func Steps() []Step {
	return []Step{StepCollectList, StepCollectCRM, StepMatch, StepReduce, StepReconcile, StepDiscard}
}

// ParseStep validates a step name.
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if step == StepRun {
		return step, nil
	}
	for _, known := range Steps() {
		if step == known {
			return step, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

// Options tune a Service.
type Options struct {
	PageSize     int    // members fetched per list page
	MaxBatchSize int    // operations per remote batch
	DryRun       bool   // log push operations instead of sending them
	Actor        string // recorded on CRM group changes
	KeepStaging  bool   // skip dropping staging tables after a run

	// Lock, when set, guards each list in SyncAll.
	Lock    func(listID string) distlock.DistLock
	LockTTL time.Duration
}

// Service runs list reconciliations. A Service may serve many lists but
// each list must only be synced by one caller at a time.
type Service struct {
	crm        CRM
	store      StagingStore
	quarantine QuarantineLog
	api        ListAPI
	opts       Options
	now        func() time.Time
}

// NewService creates a sync service from its collaborators.
func NewService(crm CRM, store StagingStore, quarantine QuarantineLog, api ListAPI, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = 1000
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 1000
	}
	if opts.Actor == "" {
		opts.Actor = "listsync"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &Service{
		crm:        crm,
		store:      store,
		quarantine: quarantine,
		api:        api,
		opts:       opts,
		now:        time.Now,
	}
}

// ListConfig validates the mappings for one list.
func ListConfig(listID string, mappings []domain.InterestMapping) (domain.ListConfig, error) {
	cfg, err := domain.NewListConfig(listID, mappings)
	if err != nil {
		return domain.ListConfig{}, &ConfigurationError{ListID: listID, Err: err}
	}
	return cfg, nil
}

// Sync runs every step for one list.
func (s *Service) Sync(ctx context.Context, cfg domain.ListConfig, dir domain.Direction) (*SyncStats, error) {
	return s.RunStep(ctx, cfg, dir, StepRun)
}

// RunStep runs a single named step, or all of them for StepRun. The
// returned stats hold whatever the executed steps produced, even on error.
func (s *Service) RunStep(ctx context.Context, cfg domain.ListConfig, dir domain.Direction, step Step) (*SyncStats, error) {
	if cfg.MembershipGroupID() == 0 {
		return nil, &ConfigurationError{ListID: cfg.ListID(), Err: domain.ErrNoMembershipGroup}
	}
	stats := &SyncStats{ListID: cfg.ListID(), Direction: dir, Step: step, StartedAt: s.now()}
	log := logger.With("list_id", cfg.ListID(), "direction", string(dir))

	steps := []Step{step}
	if step == StepRun {
		steps = Steps()
		if s.opts.KeepStaging {
			steps = steps[:len(steps)-1]
		}
	}

	for _, st := range steps {
		log.Info("sync step starting", "step", string(st))
		if err := s.runOne(ctx, cfg, dir, st, stats); err != nil {
			stats.FinishedAt = s.now()
			log.Error("sync step failed", "step", string(st), "error", err)
			return stats, fmt.Errorf("list %s step %s: %w", cfg.ListID(), st, err)
		}
	}
	stats.FinishedAt = s.now()
	log.Info("sync finished", "step", string(step), "mutations", stats.Mutations(),
		"failures", stats.Match.Failures, "duration_ms", stats.Duration().Milliseconds())
	return stats, nil
}

func (s *Service) runOne(ctx context.Context, cfg domain.ListConfig, dir domain.Direction, step Step, stats *SyncStats) error {
	switch step {
	case StepCollectList:
		res, err := s.CollectList(ctx, cfg, dir)
		stats.ListRows = res.Rows
		return err
	case StepCollectCRM:
		res, err := s.CollectCRM(ctx, cfg, dir)
		stats.CRMRows = res.Rows
		return err
	case StepMatch:
		res, err := s.Match(ctx, cfg)
		stats.Match = res
		return err
	case StepReduce:
		res, err := s.Reduce(ctx, cfg, dir)
		stats.Reduce = res
		return err
	case StepReconcile:
		if dir == domain.DirectionPull {
			res, err := s.Pull(ctx, cfg)
			stats.Pull = &res
			return err
		}
		res, err := s.Push(ctx, cfg)
		stats.Push = &res
		return err
	case StepDiscard:
		return s.Discard(ctx, cfg)
	}
	return fmt.Errorf("%w: %q", ErrUnknownStep, step)
}

// Discard drops the list's staging tables.
func (s *Service) Discard(ctx context.Context, cfg domain.ListConfig) error {
	if err := s.store.Drop(ctx, cfg.ListID()); err != nil {
		return fmt.Errorf("drop staging: %w", err)
	}
	return nil
}

// SyncAll runs step for every list independently. A failing or locked
// list does not stop the others.
func (s *Service) SyncAll(ctx context.Context, listIDs []string, mappings []domain.InterestMapping, dir domain.Direction, step Step) []ListResult {
	results := make([]ListResult, 0, len(listIDs))
	for _, listID := range listIDs {
		if ctx.Err() != nil {
			results = append(results, ListResult{ListID: listID, Err: ctx.Err()})
			continue
		}
		results = append(results, s.syncList(ctx, listID, mappings, dir, step))
	}
	return results
}

func (s *Service) syncList(ctx context.Context, listID string, mappings []domain.InterestMapping, dir domain.Direction, step Step) ListResult {
	res := ListResult{ListID: listID}
	cfg, err := ListConfig(listID, mappings)
	if err != nil {
		logger.Error("list skipped", "list_id", listID, "error", err)
		res.Err = err
		return res
	}

	run := func(ctx context.Context) error {
		res.Stats, err = s.RunStep(ctx, cfg, dir, step)
		return err
	}
	if s.opts.Lock == nil {
		res.Err = run(ctx)
		return res
	}

	err = distlock.WithLock(ctx, s.opts.Lock(listID), s.opts.LockTTL, run)
	if errors.Is(err, distlock.ErrNotAcquired) {
		logger.Warn("list is being synced elsewhere, skipping", "list_id", listID)
		res.Skipped = true
		return res
	}
	res.Err = err
	return res
}
