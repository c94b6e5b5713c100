package mailchimp

import (
	"context"
	"fmt"
	"net/url"
)

// GetLists returns the account's lists.
func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	var out listsResponse
	if err := c.get(ctx, "/lists?count=1000&fields=lists.id,lists.name,lists.stats.member_count,total_items", &out); err != nil {
		return nil, err
	}
	return out.Lists, nil
}

// GetInterestCategories returns the interest categories of a list.
func (c *Client) GetInterestCategories(ctx context.Context, listID string) ([]InterestCategory, error) {
	var out categoriesResponse
	endpoint := fmt.Sprintf("/lists/%s/interest-categories?count=1000", url.PathEscape(listID))
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}

// GetInterests returns the interests of one category.
func (c *Client) GetInterests(ctx context.Context, listID, categoryID string) ([]Interest, error) {
	var out interestsResponse
	endpoint := fmt.Sprintf("/lists/%s/interest-categories/%s/interests?count=1000",
		url.PathEscape(listID), url.PathEscape(categoryID))
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Interests, nil
}
