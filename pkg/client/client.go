package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rubywatch/release-index/pkg/index"
)

type ErrorResponse struct {
	StatusCode int
	ErrorMsg   string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("unexpected status code: %d, error: %s", e.StatusCode, e.ErrorMsg)
}

type Client struct {
	apiURL     string
	httpClient *http.Client
}

func New(apiURL string) *Client {
	return &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func setAuth(adminAccessToken string) func(r *http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", adminAccessToken)
	}
}

func getReleaseURL(series string) string {
	return fmt.Sprintf("releases/%s", series)
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, body io.Reader, modifyRequestFns ...func(r *http.Request)) (*http.Response, error) {
	apiEndpoint, err := url.JoinPath(c.apiURL, endpoint)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, apiEndpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	for _, f := range modifyRequestFns {
		f(req)
	}
	return c.httpClient.Do(req)
}

func (c *Client) decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		err := json.NewDecoder(resp.Body).Decode(&errResp)
		if err != nil {
			return err
		}
		return &errResp
	}
	err := json.NewDecoder(resp.Body).Decode(v)
	if err != nil {
		return err
	}
	return nil
}

func (c *Client) GetReleases(ctx context.Context) ([]*index.Release, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, "releases", nil)
	if err != nil {
		return nil, err
	}
	var releases []*index.Release
	err = c.decodeResponse(resp, &releases)
	if err != nil {
		return nil, err
	}
	return releases, nil
}

func (c *Client) GetRelease(ctx context.Context, series string) (*index.Release, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, getReleaseURL(series), nil)
	if err != nil {
		return nil, err
	}
	var rel index.Release
	err = c.decodeResponse(resp, &rel)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (c *Client) Refresh(ctx context.Context, adminAccessToken string) error {
	resp, err := c.sendRequest(ctx, http.MethodPut, "releases", nil, setAuth(adminAccessToken))
	if err != nil {
		return err
	}
	var refreshResponse map[string]bool
	err = c.decodeResponse(resp, &refreshResponse)
	if err != nil {
		return err
	}
	if !refreshResponse["ok"] {
		return fmt.Errorf("release report refresh failed: reason unknown")
	}
	return nil
}
