package embedder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText("hello"))
	assert.ErrorIs(t, ValidateText(""), ErrEmptyText)
	assert.ErrorIs(t, ValidateText("   \t\n"), ErrEmptyText)
}

func TestComputeHash_Deterministic(t *testing.T) {
	assert.Equal(t, ComputeHash("abc"), ComputeHash("abc"))
	assert.NotEqual(t, ComputeHash("abc"), ComputeHash("abd"))
}

func TestCache(t *testing.T) {
	cache := NewCache(2)

	cache.Set("a", []float32{1, 2})
	vec, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, vec)

	// Mutating the returned copy must not affect the cached value.
	vec[0] = 99
	again, ok := cache.Get("a")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])

	// LRU eviction at capacity.
	cache.Set("b", []float32{3})
	cache.Set("c", []float32{4})
	_, ok = cache.Get("a")
	assert.False(t, ok)
}

func TestLocalProvider_DeterministicNonZero(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	v1, err := emb.Embed(context.Background(), "sunset over the ocean")
	require.NoError(t, err)
	v2, err := emb.Embed(context.Background(), "sunset over the ocean")
	require.NoError(t, err)
	v3, err := emb.Embed(context.Background(), "quarterly earnings report")
	require.NoError(t, err)

	assert.Len(t, v1, LocalDimension)
	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, v3)

	var norm float64
	for _, x := range v1 {
		norm += float64(x * x)
	}
	assert.Greater(t, norm, 0.0)
}

func TestLocalProvider_EmptyInputFails(t *testing.T) {
	emb, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestHFProvider_FlatAndNestedResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"flat array", `[0.1, 0.2, 0.3]`},
		{"nested batch of one", `[[0.1, 0.2, 0.3]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			emb, err := NewHFProvider("tok", srv.URL, time.Second, nil)
			require.NoError(t, err)

			vec, err := emb.Embed(context.Background(), "some text")
			require.NoError(t, err)
			assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
		})
	}
}

func TestHFProvider_CachesByContent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[1.0, 2.0]`))
	}))
	defer srv.Close()

	emb, err := NewHFProvider("tok", srv.URL, time.Second, NewCache(10))
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "same text")
	require.NoError(t, err)
	_, err = emb.Embed(context.Background(), "same text")
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
}

func TestHFProvider_RetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	emb, err := NewHFProvider("tok", srv.URL, time.Second, nil)
	require.NoError(t, err)

	_, err = emb.Embed(context.Background(), "text")
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestDecodeVector_Unrecognized(t *testing.T) {
	_, err := decodeVector([]byte(`{"error":"model loading"}`))
	assert.Error(t, err)

	_, err = decodeVector([]byte(`[]`))
	assert.Error(t, err)
}

func TestNew_ProviderSelection(t *testing.T) {
	emb, err := New(Config{Provider: "local"})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{HFToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, ProviderHF, emb.Provider())

	emb, err = New(Config{OpenAIAPIKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())

	emb, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "mystery"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
