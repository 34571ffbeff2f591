// Package social reads public page metadata from the Facebook Graph API.
// Club pages often state their court count in the about text, so the
// court-count question includes it when a venue has a Facebook link.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"squash-venue-enrichment/internal/constants"
	errs "squash-venue-enrichment/pkg/errors"
	"squash-venue-enrichment/pkg/utils"
)

const (
	defaultBaseURL = "https://graph.facebook.com/v19.0"
	system         = "facebook_graph"
	pageFields     = "id,name,about,description,category,website"
)

// PageInfo is the public metadata of a Facebook page.
type PageInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	About       string `json:"about"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Website     string `json:"website"`
}

// Summary renders the non-empty fields as short labelled lines.
func (p PageInfo) Summary() string {
	var b strings.Builder
	for _, kv := range [][2]string{
		{"Page", p.Name},
		{"Category", p.Category},
		{"About", p.About},
		{"Description", p.Description},
		{"Website", p.Website},
	} {
		if v := strings.TrimSpace(kv[1]); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", kv[0], v)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the Graph API base URL, version included.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client fetches page metadata with an app or page access token.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		token:   accessToken,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: constants.FacebookTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// PageInfo loads metadata for the page behind pageURL.
func (c *Client) PageInfo(ctx context.Context, pageURL string) (*PageInfo, error) {
	const op = "social.PageInfo"
	slug := utils.FacebookPageSlug(pageURL)
	if slug == "" {
		return nil, errs.NewValidation(op, fmt.Sprintf("not a Facebook page URL: %q", pageURL), nil)
	}

	q := url.Values{}
	q.Set("fields", pageFields)
	q.Set("access_token", c.token)
	endpoint := c.baseURL + "/" + url.PathEscape(slug) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.NewExternal(op, system, "create request", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.NewExternal(op, system, "send request", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.NewExternal(op, system, "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		var ge graphError
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if json.Unmarshal(body, &ge) == nil && ge.Error != nil {
			msg += ": " + ge.Error.Message
		}
		return nil, errs.NewExternal(op, system, msg, nil)
	}

	var info PageInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, errs.NewExternal(op, system, "unmarshal response", err)
	}
	return &info, nil
}
