package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMembershipGroup means a list has no mapping without an interest id.
	ErrNoMembershipGroup = errors.New("no membership group mapped for list")
	// ErrMultipleMembershipGroups means a list has more than one membership mapping.
	ErrMultipleMembershipGroups = errors.New("more than one membership group mapped for list")
)

// InterestMapping ties a CRM group to a list, and optionally to one interest
// within that list. A mapping with an empty InterestID is the list's
// membership group.
type InterestMapping struct {
	GroupID          int64  `json:"group_id" yaml:"group_id"`
	ListID           string `json:"list_id" yaml:"list_id"`
	InterestID       string `json:"interest_id,omitempty" yaml:"interest_id"`
	ListMayUpdateCRM bool   `json:"list_may_update_crm" yaml:"list_may_update_crm"`
}

// IsMembership reports whether the mapping represents list membership itself.
func (m InterestMapping) IsMembership() bool { return m.InterestID == "" }

// ListConfig is the immutable per-list configuration a sync run works from.
type ListConfig struct {
	listID            string
	membershipGroupID int64
	interests         []InterestMapping
}

// NewListConfig validates the mappings for listID and builds its config.
// Mappings for other lists are ignored.
func NewListConfig(listID string, mappings []InterestMapping) (ListConfig, error) {
	cfg := ListConfig{listID: listID}
	found := false
	for _, m := range mappings {
		if m.ListID != listID {
			continue
		}
		if m.IsMembership() {
			if found {
				return ListConfig{}, fmt.Errorf("list %s: %w", listID, ErrMultipleMembershipGroups)
			}
			cfg.membershipGroupID = m.GroupID
			found = true
			continue
		}
		cfg.interests = append(cfg.interests, m)
	}
	if !found {
		return ListConfig{}, fmt.Errorf("list %s: %w", listID, ErrNoMembershipGroup)
	}
	return cfg, nil
}

// ListID returns the remote list id.
func (c ListConfig) ListID() string { return c.listID }

// MembershipGroupID returns the CRM group mirroring list membership.
func (c ListConfig) MembershipGroupID() int64 { return c.membershipGroupID }

// Interests returns a copy of the interest mappings.
func (c ListConfig) Interests() []InterestMapping {
	out := make([]InterestMapping, len(c.interests))
	copy(out, c.interests)
	return out
}

// ComparedInterests returns the interest mappings that take part in a
// comparison for the given direction. In pull mode, groups the list may not
// update are left out entirely.
func (c ListConfig) ComparedInterests(dir Direction) []InterestMapping {
	var out []InterestMapping
	for _, m := range c.interests {
		if dir == DirectionPull && !m.ListMayUpdateCRM {
			continue
		}
		out = append(out, m)
	}
	return out
}

// GroupIDs returns the membership group followed by every interest group.
func (c ListConfig) GroupIDs() []int64 {
	ids := []int64{c.membershipGroupID}
	for _, m := range c.interests {
		ids = append(ids, m.GroupID)
	}
	return ids
}
