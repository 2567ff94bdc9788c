package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func newTestClient(t *testing.T, url string, batch, retries int) *Client {
	t.Helper()
	t.Setenv("TEST_OPENAI_KEY", "test-key")
	c, err := NewClient(Config{
		BaseURL:    url,
		APIKeyEnv:  "TEST_OPENAI_KEY",
		BatchSize:  batch,
		MaxRetries: retries,
	})
	require.NoError(t, err)
	return c
}

func embeddingHandler(t *testing.T, dim int, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp embeddingResponse
		// Reverse order on the wire; the client must restore input order.
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(i + 1)
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "TEST_OPENAI_KEY"})
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestEmbedBatchesAndPreservesOrder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingHandler(t, 4, &calls))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2, 1)
	vectors, err := c.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	assert.EqualValues(t, 3, calls.Load(), "five inputs at batch size two take three requests")
	for _, v := range vectors {
		assert.Len(t, v, 4)
	}
	// Within each batch the first input maps to the first returned slot.
	assert.Equal(t, float32(1), vectors[0][0])
	assert.Equal(t, float32(2), vectors[1][0])
	assert.Equal(t, float32(1), vectors[2][0])
	assert.Equal(t, 4, c.Dimension())
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ok := embeddingHandler(t, 3, &calls)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Load() == 0 {
			calls.Add(1)
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		ok(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 3)
	vectors, err := c.Embed(context.Background(), []string{"once"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestEmbedExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 2)
	_, err := c.Embed(context.Background(), []string{"never"})
	require.ErrorIs(t, err, domain.ErrEmbedding)
	assert.EqualValues(t, 3, calls.Load(), "initial attempt plus two retries")
}

func TestEmbedRejectsClientErrorsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad input","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 5)
	_, err := c.Embed(context.Background(), []string{"bad"})
	require.ErrorIs(t, err, domain.ErrEmbedding)
	assert.EqualValues(t, 1, calls.Load(), "4xx responses are not retried")
}

func TestEmbedRejectsDimensionChange(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dim := 3
		if calls.Load() > 0 {
			dim = 5
		}
		embeddingHandler(t, dim, &calls)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 1)
	_, err := c.Embed(context.Background(), []string{"first"})
	require.NoError(t, err)
	require.Equal(t, 3, c.Dimension())

	_, err = c.Embed(context.Background(), []string{"second"})
	require.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "dimension changed")
}

func TestEmbedConcurrentCallersShareOneDimension(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingHandler(t, 8, &calls))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 1)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectors, err := c.Embed(context.Background(), []string{"one", "two"})
			assert.NoError(t, err)
			assert.Len(t, vectors, 2)
			assert.Equal(t, 8, c.Dimension())
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, c.Dimension())
}

func TestEmbedEmptyInputDoesNotCallProvider(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(embeddingHandler(t, 3, &calls))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0, 1)
	vectors, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, calls.Load())
}

func TestRetryDelayHonorsRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryDelay(0, "2"))
	assert.Equal(t, 200*time.Millisecond, retryDelay(0, ""))
	assert.Equal(t, 400*time.Millisecond, retryDelay(1, "not-a-number"))
	assert.Equal(t, 5*time.Second, retryDelay(10, ""))
}
