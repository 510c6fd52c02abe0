package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	perr "github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/errors"
	"github.com/bv-sergio-vargas/BV-Time-Logger/internal/platform/logger"
)

const (
	// tokenExpirySlack is subtracted from expires_in so a token is refreshed
	// before the provider considers it stale
	tokenExpirySlack = 300 * time.Second

	defaultTokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultScope    = "https://graph.microsoft.com/.default"
)

// ClientCredentials acquires bearer tokens via the OAuth2 client credentials flow
// tokens are cached until expiry minus slack; refresh is single flight under a mutex
type ClientCredentials struct {
	clientID     string
	clientSecret string
	tokenURL     string
	scope        string

	http *http.Client
	log  logger.Logger
	now  func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// ClientCredentialsOptions configures the flow
// TokenURL and Scope default to the Microsoft identity platform endpoints
type ClientCredentialsOptions struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	TokenURL     string
	Scope        string
	HTTP         *http.Client
}

// NewClientCredentials builds the credential with sane defaults
func NewClientCredentials(o ClientCredentialsOptions) *ClientCredentials {
	if o.TokenURL == "" {
		o.TokenURL = strings.Replace(defaultTokenURL, "%s", o.TenantID, 1)
	}
	if o.Scope == "" {
		o.Scope = defaultScope
	}
	if o.HTTP == nil {
		o.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	return &ClientCredentials{
		clientID:     o.ClientID,
		clientSecret: o.ClientSecret,
		tokenURL:     o.TokenURL,
		scope:        o.Scope,
		http:         o.HTTP,
		log:          *logger.Named("auth"),
		now:          time.Now,
	}
}

// Apply sets a bearer Authorization header, refreshing the token when needed
func (c *ClientCredentials) Apply(ctx context.Context, req *http.Request) error {
	tok, err := c.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// Token returns a valid cached token or fetches a new one
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry) {
		return c.token, nil
	}

	tok, expiresIn, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok
	c.expiry = c.now().Add(time.Duration(expiresIn)*time.Second - tokenExpirySlack)
	c.log.Info().Int("expires_in", expiresIn).Msg("access token acquired")
	return c.token, nil
}

// Invalidate drops the cached token so the next Apply fetches a fresh one
func (c *ClientCredentials) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiry = time.Time{}
	c.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

func (c *ClientCredentials) fetch(ctx context.Context) (string, int, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {c.scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, perr.Wrap(err, perr.ErrorCodeUnknown, "token request build failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, perr.Wrap(ctx.Err(), perr.ErrorCodeCancelled, "token request cancelled")
		}
		return "", 0, perr.Wrap(err, perr.ErrorCodeConnection, "token request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, perr.Wrap(err, perr.ErrorCodeConnection, "token response read failed")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, perr.Wrapf(err, perr.ErrorCodeProtocol, "token response unparseable (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		c.log.Error().Int("status", resp.StatusCode).Str("error", tr.Error).Msg("token acquisition failed")
		return "", 0, perr.Unauthorizedf("token acquisition failed: %s %s", tr.Error, tr.ErrorDesc)
	}
	if tr.ExpiresIn <= 0 {
		tr.ExpiresIn = 3600
	}
	return tr.AccessToken, tr.ExpiresIn, nil
}
