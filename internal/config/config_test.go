package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClient_Defaults(t *testing.T) {
	for _, key := range []string{"COMMENTS_API_URL", "VIEWER_ID", "COMMENTS_PAGE_SIZE", "COMMENTS_REQUEST_TIMEOUT", "COMMENTS_EAGER_REPLIES"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadClient()

	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.EagerReplies)
}

func TestLoadClient_Overrides(t *testing.T) {
	t.Setenv("COMMENTS_API_URL", "http://comments:9000")
	t.Setenv("VIEWER_ID", "u-1")
	t.Setenv("COMMENTS_PAGE_SIZE", "25")
	t.Setenv("COMMENTS_REQUEST_TIMEOUT", "1500ms")
	t.Setenv("COMMENTS_EAGER_REPLIES", "true")

	cfg, err := LoadClient()

	require.NoError(t, err)
	assert.Equal(t, "http://comments:9000", cfg.APIURL)
	assert.Equal(t, "u-1", cfg.ViewerID)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.True(t, cfg.EagerReplies)
}

func TestLoadClient_InvalidValues(t *testing.T) {
	t.Setenv("COMMENTS_PAGE_SIZE", "-1")
	_, err := LoadClient()
	assert.ErrorContains(t, err, "COMMENTS_PAGE_SIZE")

	t.Setenv("COMMENTS_PAGE_SIZE", "")
	t.Setenv("COMMENTS_REQUEST_TIMEOUT", "soon")
	_, err = LoadClient()
	assert.ErrorContains(t, err, "COMMENTS_REQUEST_TIMEOUT")
}

func TestLoadServer(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SEED_DEMO", "1")
	t.Setenv("COMMENTS_MAX_REPLY_DEPTH", "")

	cfg, err := LoadServer()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, 3, cfg.MaxDepth)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VIEWER_ID=from-file\n"), 0o600))
	t.Setenv("VIEWER_ID", "")
	require.NoError(t, os.Unsetenv("VIEWER_ID"))

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("VIEWER_ID"))

	assert.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")), "missing file is not an error")
}
