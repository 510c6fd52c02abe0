// Package msgraph wraps the Microsoft Graph calendar endpoints used for
// meeting collection. All resilience lives in the shared rest client
package msgraph

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/adapters/rest"
	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
)

const (
	// DefaultBaseURL is the v1.0 Graph root
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// defaultPageSize is the $top sent on calendar queries
	defaultPageSize = 100

	// maxPages bounds pagination so a bad nextLink cannot loop forever
	maxPages = 100
)

// Client fetches calendar data for one tenant
type Client struct {
	rest *rest.Client
	log  logger.Logger
	top  int
}

// Options configures a Client
type Options struct {
	BaseURL  string
	PageSize int
	Auth     rest.Credential
	HTTP     *rest.Client
}

// New builds a Graph client; HTTP overrides the internally built rest client
func New(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.PageSize <= 0 {
		o.PageSize = defaultPageSize
	}
	rc := o.HTTP
	if rc == nil {
		rc = rest.NewClient(rest.Options{BaseURL: o.BaseURL, Auth: o.Auth})
	}
	return &Client{rest: rc, log: *logger.Named("msgraph"), top: o.PageSize}
}

// CalendarEvents returns every event for userID starting at or after from
// and ending by to, following @odata.nextLink until the provider stops
// paging
func (c *Client) CalendarEvents(ctx context.Context, userID string, from, to time.Time) ([]Event, error) {
	if userID == "" {
		return nil, perr.MissingFieldf("user id is required for calendar queries")
	}
	if to.Before(from) {
		return nil, perr.OutOfRangef("calendar window end %s precedes start %s",
			to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	q := url.Values{
		"$top": {fmt.Sprintf("%d", c.top)},
		"$filter": {fmt.Sprintf("start/dateTime ge '%s' and end/dateTime le '%s'",
			from.UTC().Format("2006-01-02T15:04:05Z"),
			to.UTC().Format("2006-01-02T15:04:05Z"))},
		"$orderby": {"start/dateTime"},
	}

	var (
		all  []Event
		page eventPage
	)
	path := fmt.Sprintf("/users/%s/calendar/events", url.PathEscape(userID))
	if err := c.rest.GetJSON(ctx, path, q, &page); err != nil {
		return nil, err
	}
	all = append(all, page.Value...)

	for n := 1; page.NextLink != "" && n < maxPages; n++ {
		next := page.NextLink
		page = eventPage{}
		if err := c.rest.GetJSONURL(ctx, next, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Value...)
	}

	c.log.Debug().Str("user", userID).Int("events", len(all)).Msg("calendar fetched")
	return all, nil
}

// User fetches the profile for id, used to verify the configured identity
func (c *Client) User(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, perr.MissingFieldf("user id is required")
	}
	var u User
	if err := c.rest.GetJSON(ctx, "/users/"+url.PathEscape(id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
