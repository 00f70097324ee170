package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/alquimista/studio/internal/models"
	"github.com/alquimista/studio/internal/shared"
)

// NotificationList is the feed endpoint's response: the entries plus the
// server-computed unread count.
type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// Notifications fetches the authenticated user's notification feed.
func (c *Client) Notifications(ctx context.Context) (*NotificationList, error) {
	var list NotificationList
	if err := c.getJSON(ctx, "/api/notifications", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ProcessHistory fetches the generation audit trail, newest first. limit and
// skip page through it; values <= 0 leave the server defaults in place.
func (c *Client) ProcessHistory(ctx context.Context, limit, skip int) ([]models.ProcessRecord, error) {
	path := "/api/notifications/process-history"
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if skip > 0 {
		query.Set("skip", strconv.Itoa(skip))
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		History []models.ProcessRecord `json:"history"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// MarkNotificationRead marks one feed entry as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: notification id", shared.ErrMissingArgument)
	}
	return c.postJSON(ctx, "/api/notifications/"+id+"/read", nil, nil)
}
