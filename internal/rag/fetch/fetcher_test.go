package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imfeniljikadara/nexus-ai/internal/domain/errorModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 body"))
	}))
	defer srv.Close()

	data, err := New(time.Second, 1024).Fetch(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(data))
}

func TestFetch_Failures(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/big":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/slow":
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}
	}))
	defer srv.Close()
	defer close(release)

	tests := []struct {
		name string
		path string
		want error
	}{
		{"non 2xx", "/missing", errorModel.ErrExtractionFailed},
		{"oversize", "/big", errorModel.ErrExtractionFailed},
		{"deadline", "/slow", errorModel.ErrDownloadTimeout},
	}
	f := New(50*time.Millisecond, 16)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+tt.path)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetch_TransportErrorIsExtractionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(time.Second, 0).Fetch(context.Background(), addr+"/gone.pdf")
	assert.ErrorIs(t, err, errorModel.ErrExtractionFailed)
}

func TestFetch_CallerDeadlineIsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := New(time.Minute, 0).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, errorModel.ErrTimeout)
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM:443/a.pdf#page=2", "https://example.com/a.pdf"},
		{"http://example.com:8080/a.pdf?b=2&a=1", "http://example.com:8080/a.pdf?a=1&b=2"},
		{"  http://user:pw@example.com  ", "http://example.com/"},
	}
	for _, tt := range tests {
		got, err := Canonical(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"ftp://example.com/a.pdf", "/relative.pdf", "http://"} {
		_, err := Canonical(bad)
		assert.ErrorIs(t, err, errorModel.ErrInvalidRequest, bad)
	}
}

func TestReference_StableId(t *testing.T) {
	f := New(time.Second, 0)
	a, err := f.Reference("https://example.com/a.pdf#intro")
	require.NoError(t, err)
	b, err := f.Reference("HTTPS://EXAMPLE.com/a.pdf")
	require.NoError(t, err)

	assert.Equal(t, a.Id, b.Id)
	assert.True(t, strings.HasPrefix(a.Id, "url-"))
	assert.Equal(t, "https://example.com/a.pdf", a.Name)
}
