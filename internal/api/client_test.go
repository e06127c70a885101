package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"giftscope/internal/config"
	apperrors "giftscope/internal/errors"
	"giftscope/internal/filter"
)

type countingRetrier struct{ n atomic.Int64 }

func (r *countingRetrier) IncRetries(n int64) { r.n.Add(n) }

func noSleep(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*config.Config)) (*Client, *countingRetrier) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := config.Default()
	cfg.API.BaseURL = srv.URL + "/v1"
	cfg.API.MaxRetries = 2
	for _, m := range mutate {
		m(cfg)
	}
	r := &countingRetrier{}
	c, err := NewClient(cfg, nil, WithSleep(noSleep), WithRetrier(r))
	require.NoError(t, err)
	return c, r
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURL = "not a url"
	_, err := NewClient(cfg, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAttributesNormalizesCatalog(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/collections/Plush%20Pepe/attributes", r.URL.EscapedPath())
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Contains(t, r.Header.Get("User-Agent"), "giftscope/")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":{"Red":{"count":3,"percentage":1.5}},"Backdrop":{"Gold":{"count":1,"percentage":0.5}}}`)
	}))
	cat, err := c.Attributes(context.Background(), "Plush Pepe")
	require.NoError(t, err)
	want := filter.Catalog{
		"Model":    {"Red": {Count: 3, Percentage: 1.5}},
		"Backdrop": {"Gold": {Count: 1, Percentage: 0.5}},
	}
	if diff := cmp.Diff(want, cat); diff != "" {
		t.Fatalf("catalog mismatch (-want +got):\n%s", diff)
	}
}

func TestItemsSendsQueryBody(t *testing.T) {
	var got map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/collections/Foo/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"items":[],"totalItems":42,"totalPages":42,"currentPage":1}`)
	}))
	page, err := c.Items(context.Background(), filter.CountQuery("Foo", filter.Selection{"Model": {"Red", "Blue"}}, filter.SortNewest))
	require.NoError(t, err)
	assert.Equal(t, 42, page.TotalItems)

	want := map[string]any{
		"page":      float64(1),
		"page_size": float64(1),
		"filters":   map[string]any{"attributes": map[string]any{"Model": []any{"Red", "Blue"}}},
		"sort":      "newest",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionDataEmptyFiltersAndCatalogFlag(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"collectionData":{"giftName":"Foo","items":[{"id":"7","name":"Foo #7","number":7,"attributes":{"Model":"Red"}}],"totalItems":1,"totalPages":1,"currentPage":1},"attributes":{"model":{"Red":{"count":1,"percentage":100}}}}`)
	}))

	q := filter.Query{Collection: "Foo", Page: 1, PageSize: 24, RefreshCatalog: true}
	res, err := c.CollectionData(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"attributes": map[string]any{}}, body["filters"])
	assert.Equal(t, true, body["include_attributes"])
	_, hasSort := body["sort"]
	assert.False(t, hasSort)
	require.Len(t, res.CollectionData.Items, 1)
	assert.Equal(t, "Red", res.CollectionData.Items[0].Trait("model"))
	assert.Equal(t, 1, res.Attributes.Size())

	q.RefreshCatalog = false
	res, err = c.CollectionData(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, false, body["include_attributes"])
	assert.True(t, res.Attributes.Empty(), "fragment is dropped unless requested")
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c, r := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"totalItems":5}`)
	}))
	page, err := c.Items(context.Background(), filter.CountQuery("Foo", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 2, r.n.Load())
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var waits []time.Duration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"totalItems":1}`)
	}))
	defer srv.Close()
	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	cfg.API.MaxRetries = 1
	cfg.API.Backoff.MaxMS = 1000
	c, err := NewClient(cfg, nil, WithSleep(func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))
	require.NoError(t, err)
	_, err = c.Items(context.Background(), filter.CountQuery("Foo", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, waits)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"unknown attribute Colour"}`)
	}))
	_, err := c.Items(context.Background(), filter.CountQuery("Foo", nil, ""))
	require.Error(t, err)
	assert.True(t, apperrors.IsAPI(err))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Equal(t, "unknown attribute Colour", apperrors.Message(err))
	assert.EqualValues(t, 1, calls.Load())
}

func TestMalformedJSONIsAPIError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"totalItems":`)
	}))
	_, err := c.Items(context.Background(), filter.CountQuery("Foo", nil, ""))
	require.Error(t, err)
	assert.True(t, apperrors.IsAPI(err))
}

func TestOversizedResponseIsAPIError(t *testing.T) {
	old := maxBodyBytes
	maxBodyBytes = 16
	t.Cleanup(func() { maxBodyBytes = old })

	fits, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"totalItems":7}`)
	}))
	page, err := fits.Items(context.Background(), filter.CountQuery("Foo", nil, ""))
	require.NoError(t, err)
	assert.Equal(t, 7, page.TotalItems)

	big, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"totalItems":1234567}`)
	}))
	_, err = big.Items(context.Background(), filter.CountQuery("Foo", nil, ""))
	require.Error(t, err)
	assert.True(t, apperrors.IsAPI(err))
	assert.Equal(t, "response too large (over 16 B)", apperrors.Message(err))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	cfg := config.Default()
	cfg.API.BaseURL = url
	cfg.API.MaxRetries = 1
	c, err := NewClient(cfg, nil, WithSleep(noSleep))
	require.NoError(t, err)
	_, err = c.Attributes(context.Background(), "Foo")
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
}

func TestBearerTokenFromEnv(t *testing.T) {
	t.Setenv("GIFTSCOPE_TEST_TOKEN", "s3cret")
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{}`)
	}), func(cfg *config.Config) { cfg.API.TokenEnv = "GIFTSCOPE_TEST_TOKEN" })
	_, err := c.Attributes(context.Background(), "Foo")
	require.NoError(t, err)
}

func TestInvalidQueryNeverHitsNetwork(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("request should not be sent")
	}))
	_, err := c.CollectionData(context.Background(), filter.Query{Collection: "", Page: 1, PageSize: 1})
	assert.True(t, apperrors.IsValidation(err))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter(" 3 "))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.Zero(t, parseRetryAfter(past))
}
