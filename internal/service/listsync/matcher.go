package listsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Match resolves list rows to CRM contacts in four tiers, each working
// only on rows the previous tiers left unmatched:
//
//  1. email equality with a staged CRM row
//  2. email held by exactly one CRM contact
//  3. email plus exact names held by exactly one CRM contact
//  4. per-row candidate narrowing (see resolveCandidates)
//
// Rows that stay ambiguous are written to the quarantine log of the
// membership group and counted as failures. The log is cleared first so
// the step can be repeated.
func (s *Service) Match(ctx context.Context, cfg domain.ListConfig) (MatchResult, error) {
	var res MatchResult
	listID, groupID := cfg.ListID(), cfg.MembershipGroupID()

	if err := s.quarantine.Clear(ctx, groupID); err != nil {
		return res, fmt.Errorf("clear quarantine: %w", err)
	}

	n, err := s.store.MatchByEmail(ctx, listID)
	if err != nil {
		return res, fmt.Errorf("match by email: %w", err)
	}
	res.ByEmail = n

	pending, err := s.store.Unmatched(ctx, listID)
	if err != nil {
		return res, fmt.Errorf("load unmatched: %w", err)
	}
	if len(pending) == 0 {
		return res, nil
	}

	// Tier 2
	emails := make([]string, len(pending))
	for i, r := range pending {
		emails[i] = domain.EmailKey(r.Email)
	}
	byEmail, err := s.crm.UniqueContactsByEmail(ctx, emails)
	if err != nil {
		return res, fmt.Errorf("unique contacts by email: %w", err)
	}
	var matches []Match
	pending, matches = resolve(pending, func(r domain.StagingRecord) (int64, bool) {
		id, ok := byEmail[domain.EmailKey(r.Email)]
		return id, ok
	})
	if err := s.store.SetMatched(ctx, listID, matches); err != nil {
		return res, fmt.Errorf("store email matches: %w", err)
	}
	res.ByUniqueEmail = len(matches)

	// Tier 3
	if len(pending) > 0 {
		keys := make([]domain.NameKey, len(pending))
		for i, r := range pending {
			keys[i] = nameKey(r)
		}
		byName, err := s.crm.UniqueContactsByEmailName(ctx, keys)
		if err != nil {
			return res, fmt.Errorf("unique contacts by email and name: %w", err)
		}
		pending, matches = resolve(pending, func(r domain.StagingRecord) (int64, bool) {
			id, ok := byName[nameKey(r)]
			return id, ok
		})
		if err := s.store.SetMatched(ctx, listID, matches); err != nil {
			return res, fmt.Errorf("store name matches: %w", err)
		}
		res.ByEmailName = len(matches)
	}

	// Tier 4
	matches = nil
	for _, r := range pending {
		candidates, err := s.crm.ContactsByEmail(ctx, r.Email, groupID)
		if err != nil {
			return res, fmt.Errorf("contacts by email: %w", err)
		}
		id, err := resolveCandidates(r, candidates)
		var dup *DuplicateContactError
		if errors.As(err, &dup) {
			dup.Email = r.Email
			res.Failures++
			logger.Warn("ambiguous subscriber quarantined", "list_id", listID,
				"email", r.Email, "candidates", fmt.Sprint(dup.Candidates))
			entry := domain.QuarantineEntry{
				GroupID: groupID,
				Email:   r.Email,
				Name:    strings.TrimSpace(r.FirstName + " " + r.LastName),
				Reason:  dup.Error(),
			}
			if err := s.quarantine.Record(ctx, entry); err != nil {
				return res, fmt.Errorf("record quarantine: %w", err)
			}
			continue
		}
		if id == 0 {
			res.New++
		} else {
			res.BySingle++
		}
		matches = append(matches, Match{Email: r.Email, Hash: r.Hash, ContactID: id})
	}
	if err := s.store.SetMatched(ctx, listID, matches); err != nil {
		return res, fmt.Errorf("store resolved matches: %w", err)
	}

	logger.Info("matching finished", "list_id", listID, "matched", res.Matched(),
		"new", res.New, "failures", res.Failures)
	return res, nil
}

func nameKey(r domain.StagingRecord) domain.NameKey {
	return domain.NameKey{Email: domain.EmailKey(r.Email), FirstName: r.FirstName, LastName: r.LastName}
}

// resolve splits rows into those lookup can match and those it cannot.
func resolve(rows []domain.StagingRecord, lookup func(domain.StagingRecord) (int64, bool)) ([]domain.StagingRecord, []Match) {
	var rest []domain.StagingRecord
	var matches []Match
	for _, r := range rows {
		if id, ok := lookup(r); ok {
			matches = append(matches, Match{Email: r.Email, Hash: r.Hash, ContactID: id})
			continue
		}
		rest = append(rest, r)
	}
	return rest, matches
}

// resolveCandidates picks the contact for one subscriber from every CRM
// contact holding its email. No candidate means a new contact (0).
// Several candidates are narrowed to membership group members, then to
// exact last name, then to exact first name; the first step leaving one
// candidate decides. Same-named group members are interchangeable and the
// lowest id is taken. Anything else is a *DuplicateContactError.
func resolveCandidates(r domain.StagingRecord, candidates []domain.Contact) (int64, error) {
	switch len(candidates) {
	case 0:
		return 0, nil
	case 1:
		return candidates[0].ID, nil
	}

	set := filterContacts(candidates, func(c domain.Contact) bool { return c.InGroup })
	switch len(set) {
	case 0:
		set = candidates
	case 1:
		return set[0].ID, nil
	}

	byLast := filterContacts(set, func(c domain.Contact) bool { return c.LastName == r.LastName })
	if len(byLast) == 1 {
		return byLast[0].ID, nil
	}
	byFirst := filterContacts(byLast, func(c domain.Contact) bool { return c.FirstName == r.FirstName })
	if len(byFirst) == 1 {
		return byFirst[0].ID, nil
	}
	if len(byFirst) > 1 && allInGroup(byFirst) {
		return lowestID(byFirst), nil
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return 0, &DuplicateContactError{Email: r.Email, Candidates: ids}
}

func filterContacts(in []domain.Contact, keep func(domain.Contact) bool) []domain.Contact {
	var out []domain.Contact
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func allInGroup(cs []domain.Contact) bool {
	for _, c := range cs {
		if !c.InGroup {
			return false
		}
	}
	return true
}

func lowestID(cs []domain.Contact) int64 {
	id := cs[0].ID
	for _, c := range cs[1:] {
		if c.ID < id {
			id = c.ID
		}
	}
	return id
}
