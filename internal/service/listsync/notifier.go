package listsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/pkg/logger"
)

// Notifier propagates a group membership change for individual contacts
// to the mailing list straight away.
type Notifier interface {
	GroupChanged(ctx context.Context, groupID int64, contactIDs []int64, added bool) error
}

// NotifyingCRM wraps a CRM so that user-originated group changes are
// passed to a Notifier. Batch and webhook changes are not, which keeps a
// reconciliation run or an inbound webhook from echoing back to the list
// one contact at a time.
type NotifyingCRM struct {
	CRM
	notifier Notifier
}

// NewNotifyingCRM wraps crm.
func NewNotifyingCRM(crm CRM, n Notifier) *NotifyingCRM {
	return &NotifyingCRM{CRM: crm, notifier: n}
}

// AddToGroup applies the change and notifies for user changes.
func (c *NotifyingCRM) AddToGroup(ctx context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error {
	if err := c.CRM.AddToGroup(ctx, groupID, contactIDs, change); err != nil {
		return err
	}
	c.notify(ctx, groupID, contactIDs, true, change)
	return nil
}

// RemoveFromGroup applies the change and notifies for user changes.
func (c *NotifyingCRM) RemoveFromGroup(ctx context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error {
	if err := c.CRM.RemoveFromGroup(ctx, groupID, contactIDs, change); err != nil {
		return err
	}
	c.notify(ctx, groupID, contactIDs, false, change)
	return nil
}

// The CRM change is already committed, so notification failures are only
// logged; the next reconciliation run catches up.
func (c *NotifyingCRM) notify(ctx context.Context, groupID int64, ids []int64, added bool, change domain.GroupChange) {
	if change.Origin != domain.OriginUser || len(ids) == 0 {
		return
	}
	if err := c.notifier.GroupChanged(ctx, groupID, ids, added); err != nil {
		logger.Warn("group change notification failed", "group_id", groupID,
			"contacts", len(ids), "error", err)
	}
}

// MemberAPI is the single-member part of the remote client.
type MemberAPI interface {
	UpsertMember(ctx context.Context, listID, email string, body mailchimp.MemberUpsert) (*mailchimp.Member, error)
	Unsubscribe(ctx context.Context, listID, email string) error
}

// RemoteNotifier updates list members one by one for group changes.
type RemoteNotifier struct {
	api   MemberAPI
	crm   CRM
	lists []domain.ListConfig
}

// NewRemoteNotifier creates a notifier covering the given lists.
func NewRemoteNotifier(api MemberAPI, crm CRM, lists []domain.ListConfig) *RemoteNotifier {
	return &RemoteNotifier{api: api, crm: crm, lists: lists}
}

// GroupChanged subscribes or unsubscribes contacts when groupID is a
// membership group, and toggles the interest when it is an interest group.
// Interest changes never create members.
func (n *RemoteNotifier) GroupChanged(ctx context.Context, groupID int64, contactIDs []int64, added bool) error {
	contacts, err := n.crm.GetContacts(ctx, contactIDs)
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}

	var errs []error
	for _, cfg := range n.lists {
		interestID, isInterest := "", false
		if groupID != cfg.MembershipGroupID() {
			for _, m := range cfg.Interests() {
				if m.GroupID == groupID {
					interestID, isInterest = m.InterestID, true
					break
				}
			}
			if !isInterest {
				continue
			}
		}

		for _, id := range contactIDs {
			c, ok := contacts[id]
			if !ok || c.Email == "" {
				continue
			}
			var err error
			switch {
			case isInterest:
				_, err = n.api.UpsertMember(ctx, cfg.ListID(), c.Email, mailchimp.MemberUpsert{
					EmailAddress: c.Email,
					Interests:    map[string]bool{interestID: added},
				})
			case added:
				_, err = n.api.UpsertMember(ctx, cfg.ListID(), c.Email, memberFromContact(c))
			default:
				err = n.api.Unsubscribe(ctx, cfg.ListID(), c.Email)
				if mailchimp.IsNotFound(err) {
					err = nil
				}
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("list %s contact %d: %w", cfg.ListID(), id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func memberFromContact(c domain.Contact) mailchimp.MemberUpsert {
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
	return body
}
