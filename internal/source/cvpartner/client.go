package cvpartner

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/locvowork/employee_directory/internal/domain"
	"github.com/locvowork/employee_directory/internal/source/httpx"
)

const pageSize = 100

// Client reads users and CVs from the CV Partner API.
type Client struct {
	baseURL string
	token   string
	http    *httpx.Client
}

func NewClient(baseURL, token string, hc *httpx.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), token: token, http: hc}
}

// FetchAllEmployees pages through the user listing. Any failure aborts
// the whole fetch so callers never see a partial list.
func (c *Client) FetchAllEmployees(ctx context.Context) ([]User, error) {
	var all []User
	for offset := 0; ; offset += pageSize {
		var page []User
		if err := c.http.GetJSON(ctx, c.get("/api/v1/users", url.Values{"offset": {strconv.Itoa(offset)}}), &page); err != nil {
			return nil, fmt.Errorf("%w: cv partner users (offset %d): %w", domain.ErrFetch, offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// FetchCV returns one CV with its technologies and project experiences.
func (c *Client) FetchCV(ctx context.Context, userID, cvID string) (*CV, error) {
	path := fmt.Sprintf("/api/v3/cvs/%s/%s", url.PathEscape(userID), url.PathEscape(cvID))
	var cv CV
	if err := c.http.GetJSON(ctx, c.get(path, nil), &cv); err != nil {
		return nil, fmt.Errorf("%w: cv partner cv %s: %w", domain.ErrFetch, userID, err)
	}
	return &cv, nil
}

func (c *Client) get(path string, query url.Values) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
}
