package listsync

import (
	"context"
	"fmt"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Push makes the list reflect the CRM membership group. It works on the
// rows left after Reduce: CRM rows without a list partner are added, CRM
// rows whose partner differs update it, and resolved list rows that no CRM
// row accounts for are unsubscribed. Quarantined list rows are never
// touched.
func (s *Service) Push(ctx context.Context, cfg domain.ListConfig) (PushResult, error) {
	res := PushResult{DryRun: s.opts.DryRun}
	listID := cfg.ListID()

	crmRows, err := s.store.Rows(ctx, listID, domain.SideCRM)
	if err != nil {
		return res, fmt.Errorf("load crm rows: %w", err)
	}
	listRows, err := s.store.Rows(ctx, listID, domain.SideList)
	if err != nil {
		return res, fmt.Errorf("load list rows: %w", err)
	}

	byContact := listIndex(listRows)
	partnered := make([]bool, len(listRows))
	quarantined := emailSet(listRows, unresolved)

	var ops []mailchimp.Operation
	for _, c := range crmRows {
		i := partnerIndex(listRows, byContact[c.ContactID], c.Email, partnered)
		if i < 0 {
			if quarantined[domain.EmailKey(c.Email)] {
				res.Skipped++
				continue
			}
			op, err := mailchimp.NewUpsertOperation(listID, c.Email, additionBody(c))
			if err != nil {
				return res, err
			}
			ops = append(ops, op)
			res.Additions++
			continue
		}

		partnered[i] = true
		body, changed := PushDelta(c, listRows[i])
		if !changed {
			res.Unchanged++
			continue
		}
		op, err := mailchimp.NewUpsertOperation(listID, listRows[i].Email, body)
		if err != nil {
			return res, err
		}
		ops = append(ops, op)
		res.Updates++
	}

	crmEmails := emailSet(crmRows, nil)
	for i, l := range listRows {
		if !l.IsMatched() || partnered[i] || crmEmails[domain.EmailKey(l.Email)] {
			continue
		}
		ops = append(ops, mailchimp.NewUnsubscribeOperation(listID, l.Email))
		res.Unsubscribes++
	}

	if s.opts.DryRun {
		for _, op := range ops {
			logger.Info("dry run: would send", "list_id", listID, "method", op.Method, "path", op.Path, "body", op.Body)
		}
		res.Batch = mailchimp.BatchResult{Mode: mailchimp.ModeNone}
		return res, nil
	}

	for start := 0; start < len(ops); start += s.opts.MaxBatchSize {
		end := start + s.opts.MaxBatchSize
		if end > len(ops) {
			end = len(ops)
		}
		br, err := s.api.RunOperations(ctx, ops[start:end])
		res.Batch.Add(br)
		if err != nil {
			return res, fmt.Errorf("send operations %d-%d of %d: %w", start, end, len(ops), err)
		}
	}

	logger.Info("push finished", "list_id", listID, "additions", res.Additions,
		"updates", res.Updates, "unsubscribes", res.Unsubscribes, "failed", res.Batch.Failed)
	return res, nil
}

// additionBody subscribes c. Status is set too: collection never stages
// unsubscribed or archived members, so those are resubscribed here.
func additionBody(c domain.StagingRecord) mailchimp.MemberUpsert {
	body := mailchimp.MemberUpsert{
		EmailAddress: c.Email,
		StatusIfNew:  mailchimp.StatusSubscribed,
		Status:       mailchimp.StatusSubscribed,
	}
	merge := map[string]string{}
	if c.FirstName != "" {
		merge[mailchimp.MergeFirstName] = c.FirstName
	}
	if c.LastName != "" {
		merge[mailchimp.MergeLastName] = c.LastName
	}
	if len(merge) > 0 {
		body.MergeFields = merge
	}
	if c.Interests.Len() > 0 {
		body.Interests = c.Interests.Map()
	}
	return body
}

// PushDelta computes the upsert that brings list row l in line with CRM row
// c. A CRM name or interest set that is empty never overwrites list data.
// changed is false when there is nothing to send.
func PushDelta(c, l domain.StagingRecord) (body mailchimp.MemberUpsert, changed bool) {
	body = mailchimp.MemberUpsert{
		EmailAddress: l.Email,
		StatusIfNew:  mailchimp.StatusSubscribed,
	}
	if domain.EmailKey(c.Email) != domain.EmailKey(l.Email) {
		body.EmailAddress = c.Email
		changed = true
	}

	merge := map[string]string{}
	if c.FirstName != "" && c.FirstName != l.FirstName {
		merge[mailchimp.MergeFirstName] = c.FirstName
	}
	if c.LastName != "" && c.LastName != l.LastName {
		merge[mailchimp.MergeLastName] = c.LastName
	}
	if len(merge) > 0 {
		body.MergeFields = merge
		changed = true
	}

	if c.Interests.Len() > 0 && !c.Interests.Equal(l.Interests) {
		body.Interests = c.Interests.Map()
		changed = true
	}
	return body, changed
}
