package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkipCachePath(t *testing.T) {
	patterns := []string{"/api/v1/uptime", "/api/v1/ops/*", " ", ""}

	assert.True(t, skipCachePath("/api/v1/uptime", patterns))
	assert.True(t, skipCachePath("/api/v1/ops/purge-cache", patterns))
	assert.False(t, skipCachePath("/api/v1/pages", patterns))
	assert.False(t, skipCachePath("/api/v1/uptime/extra", patterns))
}

func TestCacheableResponse(t *testing.T) {
	ok := http.Header{}
	assert.True(t, cacheableResponse(http.StatusOK, ok))
	assert.False(t, cacheableResponse(http.StatusNotFound, ok))

	private := http.Header{}
	private.Set("Cache-Control", "private, no-store")
	assert.False(t, cacheableResponse(http.StatusOK, private))
}

func TestResponseRecorderOverflow(t *testing.T) {
	rec := &responseRecorder{limit: 8}

	rec.record([]byte("12345"))
	assert.False(t, rec.overflow)
	assert.Equal(t, []byte("12345"), rec.body)

	rec.record([]byte("67890"))
	assert.True(t, rec.overflow)
	assert.Equal(t, []byte("12345"), rec.body)
}
