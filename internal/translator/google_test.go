package translator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"story-localizer/internal/types"
)

func newTestGoogle(t *testing.T, handler http.HandlerFunc) *GoogleTranslator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGoogleTranslator(ProviderConfig{
		GoogleBaseURL:  server.URL,
		TargetLanguage: "jp",
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryBase:      time.Millisecond,
	})
}

func TestGoogleTranslator_Translate(t *testing.T) {
	var query atomic.Value
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate_a/single", r.URL.Path)
		query.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[[["船は漂う。","The ship drifts. ",null,null,10],["光が揺れる。","A light flickers.",null,null,10]],null,"en"]`))
	})

	out, err := g.Translate(context.Background(), "The ship drifts. A light flickers.")
	require.NoError(t, err)

	assert.Equal(t, "船は漂う。光が揺れる。", out)
	assert.Equal(t, "ja", g.Target())
	q := query.Load().(url.Values)
	assert.Equal(t, []string{"auto"}, q["sl"])
	assert.Equal(t, []string{"ja"}, q["tl"])
	assert.Equal(t, []string{"The ship drifts. A light flickers."}, q["q"])
}

func TestGoogleTranslator_BlankTextSkipsRequest(t *testing.T) {
	var calls int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	out, err := g.Translate(context.Background(), "  \n")
	require.NoError(t, err)
	assert.Equal(t, "  \n", out)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGoogleTranslator_RetriesServerErrors(t *testing.T) {
	var calls int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[[["続く","Continue",null,null,1]]]`))
	})

	out, err := g.Translate(context.Background(), "Continue")
	require.NoError(t, err)
	assert.Equal(t, "続く", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGoogleTranslator_RateLimitExhaustsRetries(t *testing.T) {
	var calls int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := g.Translate(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrAPIRateLimit), "got %v", err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGoogleTranslator_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad tl"}}`))
	})

	_, err := g.Translate(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrAPICall))
	assert.Contains(t, err.Error(), "bad tl")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGoogleTranslator_MalformedResponse(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>captcha</html>`))
	})

	_, err := g.Translate(context.Background(), "hello")
	assert.True(t, types.IsCode(err, types.ErrAPICall))
}

func TestGoogleTranslator_TooLong(t *testing.T) {
	g := newTestGoogle(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := g.Translate(context.Background(), strings.Repeat("a", MaxTextLength+1))
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestParseGoogleResponse_Empty(t *testing.T) {
	_, err := parseGoogleResponse([]byte(`[null,null,"en"]`))
	assert.True(t, types.IsCode(err, types.ErrAPICall))
}
