package listsync

import (
	"context"
	"fmt"
	"sort"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Pull brings list changes into the CRM. Subscribers matched to a contact
// outside the membership group join it; new subscribers become contacts;
// names follow the list unless the list value is empty; interest groups
// the list may update follow the list's flags. Contacts in the group with
// no remaining subscriber are removed from it. Group changes are applied
// in two passes, additions then removals, tagged as batch changes.
func (s *Service) Pull(ctx context.Context, cfg domain.ListConfig) (PullResult, error) {
	var res PullResult
	listID, membershipID := cfg.ListID(), cfg.MembershipGroupID()
	compared := cfg.ComparedInterests(domain.DirectionPull)

	crmRows, err := s.store.Rows(ctx, listID, domain.SideCRM)
	if err != nil {
		return res, fmt.Errorf("load crm rows: %w", err)
	}
	listRows, err := s.store.Rows(ctx, listID, domain.SideList)
	if err != nil {
		return res, fmt.Errorf("load list rows: %w", err)
	}

	crmByContact := make(map[int64]int, len(crmRows))
	for i, c := range crmRows {
		crmByContact[c.ContactID] = i
	}
	byContact := listIndex(listRows)
	contactIDs := make([]int64, 0, len(byContact))
	var outside []int64
	for id := range byContact {
		contactIDs = append(contactIDs, id)
		if _, ok := crmByContact[id]; !ok {
			outside = append(outside, id)
		}
	}
	sort.Slice(contactIDs, func(i, j int) bool { return contactIDs[i] < contactIDs[j] })

	current, err := s.currentState(ctx, outside, compared)
	if err != nil {
		return res, err
	}

	changes := newGroupChanges()
	taken := make([]bool, len(listRows))
	for _, id := range contactIDs {
		var cur domain.StagingRecord
		ci, inGroup := crmByContact[id]
		if inGroup {
			cur = crmRows[ci]
		} else {
			c, ok := current[id]
			if !ok {
				logger.Warn("matched contact no longer exists", "list_id", listID, "contact_id", id)
				res.Skipped++
				continue
			}
			cur = c
		}

		i := partnerIndex(listRows, byContact[id], cur.Email, taken)
		taken[i] = true
		l := listRows[i]

		if inGroup {
			res.InSync++
		} else {
			changes.add(membershipID, id)
			res.Joined++
		}

		updated := false
		if upd := PullNameUpdate(id, cur, l); !upd.IsEmpty() {
			if _, err := s.crm.SaveContact(ctx, upd); err != nil {
				return res, fmt.Errorf("update contact %d: %w", id, err)
			}
			updated = true
		}
		if l.Interests.Len() > 0 {
			for _, m := range compared {
				want, ok := l.Interests.Get(m.InterestID)
				if !ok {
					continue
				}
				have, _ := cur.Interests.Get(m.InterestID)
				switch {
				case want && !have:
					changes.add(m.GroupID, id)
					updated = true
				case !want && have:
					changes.remove(m.GroupID, id)
					updated = true
				}
			}
		}
		if updated {
			res.Updated++
		}
	}

	for _, l := range listRows {
		if id, ok := l.Matched(); !ok || id != 0 {
			continue
		}
		upd := domain.ContactUpdate{Email: domain.StringPtr(l.Email)}
		if l.FirstName != "" {
			upd.FirstName = domain.StringPtr(l.FirstName)
		}
		if l.LastName != "" {
			upd.LastName = domain.StringPtr(l.LastName)
		}
		id, err := s.crm.SaveContact(ctx, upd)
		if err != nil {
			return res, fmt.Errorf("create contact: %w", err)
		}
		changes.add(membershipID, id)
		for _, m := range compared {
			if on, _ := l.Interests.Get(m.InterestID); on {
				changes.add(m.GroupID, id)
			}
		}
		res.Created++
	}

	quarantined := emailSet(listRows, unresolved)
	for _, c := range crmRows {
		if _, ok := byContact[c.ContactID]; ok {
			continue
		}
		if quarantined[domain.EmailKey(c.Email)] {
			res.Skipped++
			continue
		}
		changes.remove(membershipID, c.ContactID)
		res.Removed++
	}

	change := domain.GroupChange{
		Origin: domain.OriginBatch,
		Actor:  s.opts.Actor,
		Reason: "mailing list sync " + listID,
	}
	if err := changes.apply(ctx, s.crm, change); err != nil {
		return res, err
	}

	logger.Info("pull finished", "list_id", listID, "created", res.Created, "joined", res.Joined,
		"in_sync", res.InSync, "removed", res.Removed, "updated", res.Updated)
	return res, nil
}

// currentState loads names and interest flags for contacts that have no
// CRM staging row.
func (s *Service) currentState(ctx context.Context, ids []int64, compared []domain.InterestMapping) (map[int64]domain.StagingRecord, error) {
	out := make(map[int64]domain.StagingRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	contacts, err := s.crm.GetContacts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load contacts: %w", err)
	}
	members := make([]map[int64]bool, len(compared))
	for i, m := range compared {
		if members[i], err = s.crm.GroupMembers(ctx, m.GroupID, ids); err != nil {
			return nil, fmt.Errorf("members of interest group %d: %w", m.GroupID, err)
		}
	}
	for id, c := range contacts {
		var interests domain.Interests
		for i, m := range compared {
			interests.Set(m.InterestID, members[i][id])
		}
		rec := domain.NewStagingRecord(c.Email, c.FirstName, c.LastName, interests)
		rec.ContactID = id
		out[id] = rec
	}
	return out, nil
}

// PullNameUpdate returns the name changes list row l implies for contact
// id whose current state is cur. Empty list values never clear a name.
func PullNameUpdate(id int64, cur, l domain.StagingRecord) domain.ContactUpdate {
	upd := domain.ContactUpdate{ID: id}
	if l.FirstName != "" && l.FirstName != cur.FirstName {
		upd.FirstName = domain.StringPtr(l.FirstName)
	}
	if l.LastName != "" && l.LastName != cur.LastName {
		upd.LastName = domain.StringPtr(l.LastName)
	}
	return upd
}

// groupChanges accumulates membership changes per group.
type groupChanges struct {
	adds    map[int64][]int64
	removes map[int64][]int64
}

func newGroupChanges() *groupChanges {
	return &groupChanges{adds: map[int64][]int64{}, removes: map[int64][]int64{}}
}

func (g *groupChanges) add(groupID, contactID int64) {
	g.adds[groupID] = append(g.adds[groupID], contactID)
}

func (g *groupChanges) remove(groupID, contactID int64) {
	g.removes[groupID] = append(g.removes[groupID], contactID)
}

// apply runs every addition, then every removal, one call per group.
func (g *groupChanges) apply(ctx context.Context, crm CRM, change domain.GroupChange) error {
	for _, groupID := range sortedKeys(g.adds) {
		if err := crm.AddToGroup(ctx, groupID, g.adds[groupID], change); err != nil {
			return fmt.Errorf("add %d contacts to group %d: %w", len(g.adds[groupID]), groupID, err)
		}
	}
	for _, groupID := range sortedKeys(g.removes) {
		if err := crm.RemoveFromGroup(ctx, groupID, g.removes[groupID], change); err != nil {
			return fmt.Errorf("remove %d contacts from group %d: %w", len(g.removes[groupID]), groupID, err)
		}
	}
	return nil
}

func sortedKeys(m map[int64][]int64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
