package vtapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", 5*time.Second, zap.NewNop())
}

func TestGetSendsAuthHeader(t *testing.T) {
	var gotKey, gotAccept string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-apikey")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, `{}`)
	})

	_, _, err := client.Get(context.Background(), "/files/abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotAccept)
}

func TestGetEncodesQueryParams(t *testing.T) {
	var gotQuery url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{}`)
	})

	params := url.Values{}
	params.Set("query", `name:"evil file.exe"`)
	params.Set("limit", "5")

	_, _, err := client.Get(context.Background(), "/search", params)
	require.NoError(t, err)
	assert.Equal(t, `name:"evil file.exe"`, gotQuery.Get("query"))
	assert.Equal(t, "5", gotQuery.Get("limit"))
}

func TestGetStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, IsNotFound(err))
		}},
		{"rate limited", http.StatusTooManyRequests, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrRateLimited)
		}},
		{"bad credentials", http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidAPIKey)
		}},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
			assert.Equal(t, "/files/abc", statusErr.Endpoint)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, _, err := client.Get(context.Background(), "/files/abc", nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestGetExtractsRateHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ratelimit-remaining", "3")
		w.Header().Set("x-ratelimit-reset", "1767225600")
		fmt.Fprint(w, `{}`)
	})

	_, headers, err := client.Get(context.Background(), "/files/abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "3", headers.Remaining)
	assert.Equal(t, "1767225600", headers.Reset)
}

func TestGetReturnsRateHeadersOnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ratelimit-remaining", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, headers, err := client.Get(context.Background(), "/files/abc", nil)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, "0", headers.Remaining, "headers travel with the error")
}

func TestGetJSONDecodes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"abc","attributes":{"last_analysis_stats":{"malicious":7}}}}`)
	})

	var resp ObjectResponse
	raw, _, err := client.GetJSON(context.Background(), "/files/abc", nil, &resp)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Data.ID)
	assert.Equal(t, 7, resp.Data.Attributes.LastAnalysisStats.Malicious)
	assert.NotEmpty(t, raw)
}

func TestGetJSONBadBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{not json`)
	})

	var resp ObjectResponse
	_, _, err := client.GetJSON(context.Background(), "/files/abc", nil, &resp)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestGetHonorsContextCancel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := client.Get(ctx, "/files/abc", nil)
	require.Error(t, err)
}

func TestAnalysisStatsSum(t *testing.T) {
	stats := AnalysisStats{Malicious: 1, Suspicious: 2, Harmless: 3, Undetected: 4, Timeout: 5}
	assert.Equal(t, 15, stats.Sum())
}

func TestListResponseExtractors(t *testing.T) {
	var resp ListResponse
	require.NoError(t, jsonCodec.Unmarshal([]byte(`{"data":[
		{"id":"a","attributes":{"host_name":"one.example"}},
		{"id":"","attributes":{"ip_address":"203.0.113.9"}},
		{"id":"b","attributes":{}}
	]}`), &resp))

	assert.Equal(t, []string{"a", "b"}, resp.IDs())
	assert.Equal(t, []string{"one.example"}, resp.Hostnames())
	assert.Equal(t, []string{"203.0.113.9"}, resp.IPAddresses())
}
