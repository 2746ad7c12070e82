package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultIndexURL is the official index of all published Ruby source releases.
const DefaultIndexURL = "https://cache.ruby-lang.org/pub/ruby/index.txt"

const secureScheme = "https://"

// Client fetches the raw release index. Every run performs exactly one fetch
// attempt: retries of the underlying client are disabled, a failed fetch
// surfaces to the caller unchanged.
type Client struct {
	httpClient *retryablehttp.Client
}

func New(timeout time.Duration) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.Logger = nil
	httpClient.RetryMax = 0
	httpClient.HTTPClient.Timeout = timeout
	return &Client{httpClient: httpClient}
}

// Fetch issues a single GET request and returns the response body. Only
// https URLs are accepted as index sources.
func (c *Client) Fetch(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, secureScheme) {
		return "", fmt.Errorf("refusing to fetch index from insecure URL %s", url)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return "", fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	data, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
