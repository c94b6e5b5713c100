package domain

import (
	"fmt"
	"time"
)

// Direction is the way data flows during a reconciliation.
type Direction string

const (
	// DirectionPush sends CRM state to the mailing list.
	DirectionPush Direction = "push"
	// DirectionPull brings mailing list state into the CRM.
	DirectionPull Direction = "pull"
)

// ParseDirection validates a direction name.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionPush, DirectionPull:
		return Direction(s), nil
	}
	return "", fmt.Errorf("unknown sync direction %q (want push or pull)", s)
}

// Origin tells collaborators where a CRM mutation came from so they can
// decide whether to react to it.
type Origin string

const (
	// OriginBatch is a mutation applied by a reconciliation run.
	OriginBatch Origin = "batch"
	// OriginWebhook is a mutation caused by a mailing list webhook.
	OriginWebhook Origin = "webhook"
	// OriginUser is a mutation made by a person or another CRM process.
	OriginUser Origin = "user"
)

// GroupChange tags a batch of group membership changes.
type GroupChange struct {
	Origin Origin
	Actor  string
	Reason string
}

// QuarantineEntry records a subscriber that could not be resolved to a
// single CRM contact.
type QuarantineEntry struct {
	GroupID   int64     `json:"group_id" db:"group_id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Reason    string    `json:"reason" db:"reason"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
