// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

type CoreHTTP interface {
	BuildURL(project, resource, id string, params map[string]string) string
	Do(ctx context.Context, method, url string, data []byte) ([]byte, int, error)
	// Stream sends a raw body and returns the raw response body, caller closes it.
	Stream(ctx context.Context, method, url, contentType string, body io.Reader) (io.ReadCloser, int, error)
	Close()
}

// StatusError is returned for every non-2xx core response.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("core responded with: %s - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("core responded with: %s", e.Status)
}

type httpCore struct {
	httpClient *http.Client
	coreConfig CoreConfig
}

// NewHTTPCore builds the core transport. A nil client gets a retrying one
// (5xx and connection errors, RetryMax attempts).
func NewHTTPCore(httpClient *http.Client, coreConfig CoreConfig) CoreHTTP {
	if httpClient == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = coreConfig.RetryMax
		rc.Logger = nil
		httpClient = rc.StandardClient()
	}
	if coreConfig.APIVersion == "" {
		coreConfig.APIVersion = DefaultAPIVersion
	}
	return &httpCore{httpClient: httpClient, coreConfig: coreConfig}
}

func (httpCore *httpCore) BuildURL(project, resource, id string, params map[string]string) string {
	base := fmt.Sprintf("%s/api/%s", strings.TrimSuffix(httpCore.coreConfig.BaseURL, "/"), httpCore.coreConfig.APIVersion)
	if resource != "projects" && project != "" {
		base += "/-/" + url.PathEscape(project)
	}
	base += "/" + resource
	if id != "" {
		base += "/" + url.PathEscape(id)
	}
	qs := url.Values{}
	for k, v := range params {
		if v == "" {
			continue
		}
		qs.Set(k, v)
	}
	if len(qs) > 0 {
		// Encode sorts by key, URLs are stable
		base += "?" + qs.Encode()
	}
	return base
}

func (httpCore *httpCore) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	// If access token is set, add Authorization header
	if tok := httpCore.coreConfig.AccessToken; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	// If basic auth is set, add Basic Auth header
	if user := httpCore.coreConfig.BasicAuthUsername; user != "" {
		req.SetBasicAuth(user, httpCore.coreConfig.BasicAuthPassword)
	}
	return req, nil
}

func (httpCore *httpCore) Do(ctx context.Context, method, url string, data []byte) ([]byte, int, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	req, err := httpCore.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpCore.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, rerr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return b, resp.StatusCode, statusError(resp, b)
	}
	return b, resp.StatusCode, rerr
}

func (httpCore *httpCore) Stream(ctx context.Context, method, url, contentType string, body io.Reader) (io.ReadCloser, int, error) {
	req, err := httpCore.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, 0, err
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := httpCore.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, resp.StatusCode, statusError(resp, b)
	}
	return resp.Body, resp.StatusCode, nil
}

func (httpCore *httpCore) Close() {
	httpCore.httpClient.CloseIdleConnections()
}

func statusError(resp *http.Response, body []byte) error {
	se := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	var m map[string]any
	if json.Unmarshal(body, &m) == nil {
		if msg, ok := m["message"].(string); ok {
			se.Message = msg
		}
	}
	return se
}
