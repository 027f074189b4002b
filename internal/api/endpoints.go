package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/nhle/fleetconsole/internal/model"
)

// Dashboard fetches the role-aggregated KPIs and activity feed.
func (c *Client) Dashboard(ctx context.Context) (*model.DashboardPayload, error) {
	body, err := c.get(ctx, "/dashboard")
	if err != nil {
		return nil, err
	}

	var payload model.DashboardPayload
	if err := json.Unmarshal(unwrapObject(body), &payload); err != nil {
		return nil, fmt.Errorf("decoding /dashboard: %w", err)
	}
	return &payload, nil
}

// MyAssignment fetches the vehicle currently assigned to the principal.
// A body of null, {} or {"data":null} decodes to an empty assignment.
func (c *Client) MyAssignment(ctx context.Context) (*model.Assignment, error) {
	body, err := c.get(ctx, "/assignments/my")
	if err != nil {
		return nil, err
	}

	var a model.Assignment
	inner := unwrapObject(body)
	if len(bytes.TrimSpace(inner)) == 0 || bytes.Equal(bytes.TrimSpace(inner), []byte("null")) {
		return &a, nil
	}
	if err := json.Unmarshal(inner, &a); err != nil {
		return nil, fmt.Errorf("decoding /assignments/my: %w", err)
	}
	return &a, nil
}

// FuelRecords fetches every fuel fill visible to the principal.
func (c *Client) FuelRecords(ctx context.Context) ([]model.FuelRecord, error) {
	var records []model.FuelRecord
	if err := c.getList(ctx, "/fuel/consommations", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Incidents fetches every incident visible to the principal.
func (c *Client) Incidents(ctx context.Context) ([]model.IncidentRecord, error) {
	var records []model.IncidentRecord
	if err := c.getList(ctx, "/incidents", &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Notifications fetches the first page of the notification feed.
func (c *Client) Notifications(ctx context.Context, perPage int) ([]model.Notification, error) {
	path := "/notifications"
	if perPage > 0 {
		path += "?per_page=" + strconv.Itoa(perPage)
	}

	var feed []model.Notification
	if err := c.getList(ctx, path, &feed); err != nil {
		return nil, err
	}
	return feed, nil
}

// UnreadCount fetches the server-side unread count. It returns nil when the
// response carries no readable count; the count is then unknown.
func (c *Client) UnreadCount(ctx context.Context) (*int, error) {
	body, err := c.get(ctx, "/notifications/unread-count")
	if err != nil {
		return nil, err
	}

	inner := bytes.TrimSpace(unwrapObject(body))
	if len(inner) == 0 || inner[0] != '{' {
		var n model.Amount
		_ = json.Unmarshal(inner, &n)
		return countOf(n), nil
	}

	var wire struct {
		Count       model.Amount `json:"count"`
		UnreadCount model.Amount `json:"unread_count"`
	}
	if err := json.Unmarshal(inner, &wire); err != nil {
		return nil, nil
	}
	if wire.Count.Valid {
		return countOf(wire.Count), nil
	}
	return countOf(wire.UnreadCount), nil
}

// countOf converts a decoded count, rejecting fractions and negatives.
func countOf(a model.Amount) *int {
	if !a.Valid || a.Value < 0 || a.Value != math.Trunc(a.Value) {
		return nil
	}
	n := int(a.Value)
	return &n
}

// MarkNotificationRead marks one notification read on the server.
func (c *Client) MarkNotificationRead(ctx context.Context, id model.ID) error {
	_, err := c.put(ctx, "/notifications/"+url.PathEscape(id.String())+"/read")
	return err
}

// MarkAllNotificationsRead marks every notification of the principal read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.put(ctx, "/notifications/read-all")
	return err
}

// getList decodes a list endpoint that answers either a bare JSON array or a
// paginated object with the items under "data".
func (c *Client) getList(ctx context.Context, path string, dst interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		trimmed = bytes.TrimSpace(page.Data)
	}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// unwrapObject returns the value under "data" when body is an object whose
// payload is wrapped, and body itself otherwise.
func unwrapObject(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}
	data, ok := envelope["data"]
	if !ok {
		return trimmed
	}
	inner := bytes.TrimSpace(data)
	if len(inner) > 0 && inner[0] == '[' {
		return trimmed
	}
	return inner
}
