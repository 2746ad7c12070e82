package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testIndex = "name\turl\tsha256\n" +
	"ruby-3.2.4\thttps://cache.ruby-lang.org/pub/ruby/3.2/ruby-3.2.4.tar.gz\tc72b3c5c\n"

func newIndexServer(failingRequests int, requests *int) *httptest.Server {
	return httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		if *requests <= failingRequests {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, testIndex)
	}))
}

func newTestClient(ts *httptest.Server) *Client {
	c := New(time.Minute)
	c.httpClient.HTTPClient = ts.Client()
	return c
}

func TestFetch(t *testing.T) {
	requests := 0
	ts := newIndexServer(0, &requests)
	defer ts.Close()

	data, err := newTestClient(ts).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, testIndex, data)
	require.Equal(t, 1, requests)
}

func TestFetchSingleAttempt(t *testing.T) {
	requests := 0
	ts := newIndexServer(1, &requests)
	defer ts.Close()

	_, err := newTestClient(ts).Fetch(context.Background(), ts.URL)
	require.Error(t, err)
	require.Equal(t, 1, requests)
}

func TestFetchInsecureURL(t *testing.T) {
	_, err := New(time.Minute).Fetch(context.Background(), "http://cache.ruby-lang.org/pub/ruby/index.txt")
	require.ErrorContains(t, err, "insecure")
}

func TestFetchNotFound(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := newTestClient(ts).Fetch(context.Background(), ts.URL)
	require.ErrorContains(t, err, "unexpected status code: 404")
}
