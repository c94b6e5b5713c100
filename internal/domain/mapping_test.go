package domain

import (
	"errors"
	"testing"
)

func testMappings() []InterestMapping {
	return []InterestMapping{
		{GroupID: 10, ListID: "L1"},
		{GroupID: 11, ListID: "L1", InterestID: "i1", ListMayUpdateCRM: true},
		{GroupID: 12, ListID: "L1", InterestID: "i2", ListMayUpdateCRM: false},
		{GroupID: 20, ListID: "L2"},
	}
}

func TestNewListConfig(t *testing.T) {
	cfg, err := NewListConfig("L1", testMappings())
	if err != nil {
		t.Fatalf("NewListConfig: %v", err)
	}
	if cfg.MembershipGroupID() != 10 {
		t.Errorf("membership group = %d, want 10", cfg.MembershipGroupID())
	}
	if len(cfg.Interests()) != 2 {
		t.Errorf("interests = %d, want 2", len(cfg.Interests()))
	}
	if got := cfg.GroupIDs(); len(got) != 3 || got[0] != 10 {
		t.Errorf("GroupIDs = %v", got)
	}
}

func TestNewListConfig_NoMembershipGroup(t *testing.T) {
	_, err := NewListConfig("L3", testMappings())
	if !errors.Is(err, ErrNoMembershipGroup) {
		t.Errorf("expected ErrNoMembershipGroup, got %v", err)
	}
}

func TestNewListConfig_TwoMembershipGroups(t *testing.T) {
	m := append(testMappings(), InterestMapping{GroupID: 13, ListID: "L1"})
	_, err := NewListConfig("L1", m)
	if !errors.Is(err, ErrMultipleMembershipGroups) {
		t.Errorf("expected ErrMultipleMembershipGroups, got %v", err)
	}
}

func TestComparedInterests_PullSkipsReadOnlyGroups(t *testing.T) {
	cfg, _ := NewListConfig("L1", testMappings())

	if n := len(cfg.ComparedInterests(DirectionPush)); n != 2 {
		t.Errorf("push compares %d interests, want 2", n)
	}
	pull := cfg.ComparedInterests(DirectionPull)
	if len(pull) != 1 || pull[0].InterestID != "i1" {
		t.Errorf("pull compares %+v, want only i1", pull)
	}
}

func TestParseDirection(t *testing.T) {
	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if d, err := ParseDirection("pull"); err != nil || d != DirectionPull {
		t.Errorf("ParseDirection(pull) = %v, %v", d, err)
	}
}
