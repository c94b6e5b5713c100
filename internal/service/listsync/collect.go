package listsync

import (
	"context"
	"fmt"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/pkg/logger"
)

const insertChunk = 1000

// CollectCRM stages every mailable contact of the membership group along
// with its interest flags. It resets only the CRM side.
func (s *Service) CollectCRM(ctx context.Context, cfg domain.ListConfig, dir domain.Direction) (CollectResult, error) {
	res := CollectResult{Side: domain.SideCRM}

	if err := s.crm.RefreshGroupCache(ctx, cfg.GroupIDs()); err != nil {
		return res, fmt.Errorf("refresh group cache: %w", err)
	}

	contacts, err := s.crm.ContactsInGroup(ctx, cfg.MembershipGroupID())
	if err != nil {
		return res, fmt.Errorf("contacts in group %d: %w", cfg.MembershipGroupID(), err)
	}

	ids := make([]int64, len(contacts))
	for i, c := range contacts {
		ids[i] = c.ID
	}

	compared := cfg.ComparedInterests(dir)
	membership := make([]map[int64]bool, len(compared))
	for i, m := range compared {
		members, err := s.crm.GroupMembers(ctx, m.GroupID, ids)
		if err != nil {
			return res, fmt.Errorf("members of interest group %d: %w", m.GroupID, err)
		}
		membership[i] = members
	}

	rows := make([]domain.StagingRecord, 0, len(contacts))
	for _, c := range contacts {
		var interests domain.Interests
		for i, m := range compared {
			interests.Set(m.InterestID, membership[i][c.ID])
		}
		rec := domain.NewStagingRecord(c.Email, c.FirstName, c.LastName, interests)
		rec.ContactID = c.ID
		rows = append(rows, rec)
	}

	if err := s.store.Reset(ctx, cfg.ListID(), domain.SideCRM); err != nil {
		return res, fmt.Errorf("reset crm staging: %w", err)
	}
	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		n, err := s.store.Insert(ctx, cfg.ListID(), domain.SideCRM, rows[start:end])
		if err != nil {
			return res, fmt.Errorf("stage crm rows: %w", err)
		}
		res.Rows += n
	}

	logger.Info("crm side collected", "list_id", cfg.ListID(), "rows", res.Rows)
	return res, nil
}

// CollectList stages every subscribed member of the list. Both sides are
// reset first so the collection can start a run afresh.
func (s *Service) CollectList(ctx context.Context, cfg domain.ListConfig, dir domain.Direction) (CollectResult, error) {
	res := CollectResult{Side: domain.SideList}

	for _, side := range []domain.Side{domain.SideList, domain.SideCRM} {
		if err := s.store.Reset(ctx, cfg.ListID(), side); err != nil {
			return res, fmt.Errorf("reset %s staging: %w", side, err)
		}
	}

	compared := cfg.ComparedInterests(dir)
	buf := make([]domain.StagingRecord, 0, insertChunk)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := s.store.Insert(ctx, cfg.ListID(), domain.SideList, buf)
		if err != nil {
			return fmt.Errorf("stage list rows: %w", err)
		}
		res.Rows += n
		buf = buf[:0]
		return nil
	}

	err := s.api.EachSubscribedMember(ctx, cfg.ListID(), s.opts.PageSize, func(m mailchimp.Member) error {
		if m.EmailAddress == "" {
			return nil
		}
		buf = append(buf, memberRecord(m, compared))
		if len(buf) >= insertChunk {
			return flush()
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("collect members: %w", err)
	}
	if err := flush(); err != nil {
		return res, err
	}

	logger.Info("list side collected", "list_id", cfg.ListID(), "rows", res.Rows)
	return res, nil
}

// memberRecord converts a list member. Members without any interests data
// get an empty interest set rather than all-false flags.
func memberRecord(m mailchimp.Member, compared []domain.InterestMapping) domain.StagingRecord {
	first := m.MergeString(mailchimp.MergeFirstName)
	last := m.MergeString(mailchimp.MergeLastName)
	if first == "" && last == "" {
		full := m.MergeString(mailchimp.MergeFullName)
		if full == "" {
			full = m.FullName
		}
		first, last = domain.SplitFullName(full)
	}

	var interests domain.Interests
	if len(m.Interests) > 0 {
		for _, im := range compared {
			interests.Set(im.InterestID, m.Interests[im.InterestID])
		}
	}
	return domain.NewStagingRecord(m.EmailAddress, first, last, interests)
}
