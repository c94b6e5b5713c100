package listsync

import (
	"time"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
)

// CollectResult is the outcome of one collection step.
type CollectResult struct {
	Side domain.Side `json:"side"`
	Rows int         `json:"rows"`
}

// MatchResult counts list rows resolved by each matcher tier.
type MatchResult struct {
	ByEmail       int `json:"by_email"`
	ByUniqueEmail int `json:"by_unique_email"`
	ByEmailName   int `json:"by_email_name"`
	BySingle      int `json:"by_single"`
	New           int `json:"new"`
	Failures      int `json:"failures"`
}

// Matched returns the number of rows resolved to an existing contact.
func (m MatchResult) Matched() int {
	return m.ByEmail + m.ByUniqueEmail + m.ByEmailName + m.BySingle
}

// ReduceResult counts staging rows removed by the reducer.
type ReduceResult struct {
	Doubles int `json:"doubles"`
	InSync  int `json:"in_sync"`
}

// PushResult counts operations sent to the list.
type PushResult struct {
	Additions    int                   `json:"additions"`
	Updates      int                   `json:"updates"`
	Unsubscribes int                   `json:"unsubscribes"`
	Unchanged    int                   `json:"unchanged"`
	Skipped      int                   `json:"skipped"`
	DryRun       bool                  `json:"dry_run,omitempty"`
	Batch        mailchimp.BatchResult `json:"batch"`
}

// PullResult counts changes applied to the CRM.
type PullResult struct {
	Created int `json:"created"`
	Joined  int `json:"joined"`
	InSync  int `json:"in_sync"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// SyncStats aggregates the phase results of one list run.
type SyncStats struct {
	ListID     string           `json:"list_id"`
	Direction  domain.Direction `json:"direction"`
	Step       Step             `json:"step"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	ListRows   int              `json:"list_rows"`
	CRMRows    int              `json:"crm_rows"`
	Match      MatchResult      `json:"match"`
	Reduce     ReduceResult     `json:"reduce"`
	Push       *PushResult      `json:"push,omitempty"`
	Pull       *PullResult      `json:"pull,omitempty"`
}

// Duration is the wall time of the run.
func (s *SyncStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Mutations is the number of changes the run made (or would make, in a
// dry run) on either side.
func (s *SyncStats) Mutations() int {
	n := 0
	if s.Push != nil {
		n += s.Push.Additions + s.Push.Updates + s.Push.Unsubscribes
	}
	if s.Pull != nil {
		n += s.Pull.Created + s.Pull.Joined + s.Pull.Removed + s.Pull.Updated
	}
	return n
}

// ListResult is the outcome of one list in a multi-list sync.
type ListResult struct {
	ListID  string     `json:"list_id"`
	Stats   *SyncStats `json:"stats,omitempty"`
	Err     error      `json:"-"`
	Skipped bool       `json:"skipped,omitempty"` // lock held elsewhere
}
