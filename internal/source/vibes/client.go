package vibes

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/source/httpx"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Employment is the staffing system's view of one employee's contract.
type Employment struct {
	Email     string `json:"email"`
	StartDate *Date  `json:"startDate"`
	EndDate   *Date  `json:"endDate"`
}

// Date accepts both "2006-01-02" and RFC 3339 timestamps.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}

// Config holds the OAuth2 client-credentials settings.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// Client reads employments from the staffing API.
type Client struct {
	baseURL string
	http    *httpx.Client
}

// NewClient builds a client whose transport fetches and refreshes a bearer
// token with the client-credentials grant. base is the underlying HTTP
// client used for both the token and the API calls.
func NewClient(ctx context.Context, cfg Config, base *http.Client, retry httpx.RetryConfig) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	if cfg.Scope != "" {
		cc.Scopes = strings.Fields(cfg.Scope)
	}
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	authed := cc.Client(ctx)
	if base != nil {
		authed.Timeout = base.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpx.NewClient(authed, retry),
	}
}

// FetchEmployments returns every employment keyed by lower-cased email.
func (c *Client) FetchEmployments(ctx context.Context) (map[string]Employment, error) {
	var list []Employment
	err := c.http.GetJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v0/employment", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("%w: vibes employments: %w", domain.ErrFetch, err)
	}

	out := make(map[string]Employment, len(list))
	for _, e := range list {
		if e.Email == "" {
			continue
		}
		out[strings.ToLower(e.Email)] = e
	}
	return out, nil
}
