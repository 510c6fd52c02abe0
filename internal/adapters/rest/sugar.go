package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
)

// GetJSON fetches path and decodes the body into out
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, query, nil, nil)
	if err != nil {
		return err
	}
	return decodeInto(resp.Body, out)
}

// PostJSON sends body as JSON and decodes the response into out when non-nil
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, path, query, body, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeInto(resp.Body, out)
}

// PatchJSON sends a JSON Patch document and decodes the response into out when non-nil
// the provider requires the json-patch media type on PATCH
func (c *Client) PatchJSON(ctx context.Context, path string, query url.Values, patch, out any) error {
	hdr := http.Header{"Content-Type": {"application/json-patch+json"}}
	resp, err := c.Do(ctx, http.MethodPatch, path, query, patch, hdr)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeInto(resp.Body, out)
}

// GetJSONURL fetches an absolute URL, bypassing the client base URL
// pagination links from the calendar provider come back absolute
func (c *Client) GetJSONURL(ctx context.Context, absolute string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, absolute, nil, nil, nil)
	if err != nil {
		return err
	}
	return decodeInto(resp.Body, out)
}

func decodeInto(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(body) == 0 {
		return perr.New(perr.ErrorCodeProtocol, "empty response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return perr.Wrap(err, perr.ErrorCodeProtocol, "response decode failed")
	}
	return nil
}
