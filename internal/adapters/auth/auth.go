// Package auth provides credential providers for the calendar and work item providers
package auth

import (
	"context"
	"encoding/base64"
	"net/http"
)

// Credential applies provider credentials to an outgoing request
// implementations must be safe for concurrent use
type Credential interface {
	Apply(ctx context.Context, req *http.Request) error
}

// PAT is a static personal access token credential
// the provider expects Basic auth with an empty username and the token as password
type PAT struct {
	header string
}

// NewPAT encodes the token once at construction
func NewPAT(token string) *PAT {
	enc := base64.StdEncoding.EncodeToString([]byte(":" + token))
	return &PAT{header: "Basic " + enc}
}

// Apply sets the Authorization header
func (p *PAT) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", p.header)
	return nil
}
