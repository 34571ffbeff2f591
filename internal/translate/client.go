// Package translate is a small Google Cloud Translation (v2 REST) client used
// to retry name matching for venues whose names are not in English.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/language"

	"squash-venue-enrichment/internal/constants"
	errs "squash-venue-enrichment/pkg/errors"
)

const (
	defaultBaseURL = "https://translation.googleapis.com"
	system         = "google_translate"
)

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client translates short texts into English.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a translation client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: constants.TranslateTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type translateRequest struct {
	Q      []string `json:"q"`
	Target string   `json:"target"`
	Source string   `json:"source,omitempty"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate returns text in English. An empty sourceLang lets the service
// detect the language. Text already in English comes back unchanged.
func (c *Client) Translate(ctx context.Context, text, sourceLang string) (string, error) {
	const op = "translate.Translate"
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	reqBody := translateRequest{Q: []string{text}, Target: language.English.String(), Format: "text"}
	if sourceLang != "" {
		tag, err := language.Parse(sourceLang)
		if err != nil {
			return "", errs.NewValidation(op, fmt.Sprintf("invalid source language %q", sourceLang), err)
		}
		base, _ := tag.Base()
		if base.String() == "en" {
			return text, nil
		}
		reqBody.Source = base.String()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", errs.NewExternal(op, system, "marshal request", err)
	}
	endpoint := c.baseURL + "/language/translate/v2?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.NewExternal(op, system, "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.NewExternal(op, system, "send request", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.NewExternal(op, system, "read response", err)
	}

	var out translateResponse
	if err := json.Unmarshal(respBody, &out); err != nil && resp.StatusCode == http.StatusOK {
		return "", errs.NewExternal(op, system, "unmarshal response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg += ": " + out.Error.Message
		}
		return "", errs.NewExternal(op, system, msg, nil)
	}
	if len(out.Data.Translations) == 0 {
		return "", errs.NewExternal(op, system, "empty translation response", nil)
	}
	return html.UnescapeString(out.Data.Translations[0].TranslatedText), nil
}

// NeedsTranslation reports whether s contains non-ASCII letters, the signal
// the mapper uses to attempt a translated retry.
func NeedsTranslation(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
