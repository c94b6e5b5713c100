package mailchimp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const memberFields = "members.email_address,members.status,members.full_name,members.merge_fields,members.interests,total_items"

// MemberPath returns the member resource path for email on a list.
func MemberPath(listID, email string) string {
	return fmt.Sprintf("/lists/%s/members/%s", url.PathEscape(listID), SubscriberHash(email))
}

// GetMembers fetches one page of list members with the given status.
func (c *Client) GetMembers(ctx context.Context, listID, status string, count, offset int) (*MembersPage, error) {
	params := url.Values{}
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("fields", memberFields)
	if status != "" {
		params.Set("status", status)
	}
	endpoint := fmt.Sprintf("/lists/%s/members?%s", url.PathEscape(listID), params.Encode())

	var page MembersPage
	if err := c.get(ctx, endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// EachSubscribedMember pages through every subscribed member of a list and
// calls fn for each. Paging stops at the first short page.
func (c *Client) EachSubscribedMember(ctx context.Context, listID string, pageSize int, fn func(Member) error) error {
	if pageSize <= 0 {
		pageSize = 1000
	}
	for offset := 0; ; offset += pageSize {
		page, err := c.GetMembers(ctx, listID, StatusSubscribed, pageSize, offset)
		if err != nil {
			return fmt.Errorf("members page at offset %d: %w", offset, err)
		}
		for _, m := range page.Members {
			if err := fn(m); err != nil {
				return err
			}
		}
		if len(page.Members) < pageSize {
			return nil
		}
	}
}

// GetMember fetches one member by email.
func (c *Client) GetMember(ctx context.Context, listID, email string) (*Member, error) {
	var m Member
	if err := c.get(ctx, MemberPath(listID, email), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMember creates or updates the member at the hash of email.
func (c *Client) UpsertMember(ctx context.Context, listID, email string, body MemberUpsert) (*Member, error) {
	resp, err := c.Call(ctx, http.MethodPut, MemberPath(listID, email), body)
	if err != nil {
		return nil, err
	}
	var m Member
	if err := resp.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &m, nil
}

// Unsubscribe marks the member unsubscribed.
func (c *Client) Unsubscribe(ctx context.Context, listID, email string) error {
	_, err := c.Call(ctx, http.MethodPatch, MemberPath(listID, email), StatusUpdate{Status: StatusUnsubscribed})
	return err
}

// ArchiveMember removes the member from the list.
func (c *Client) ArchiveMember(ctx context.Context, listID, email string) error {
	_, err := c.Call(ctx, http.MethodDelete, MemberPath(listID, email), nil)
	return err
}
