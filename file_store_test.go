package bustrack

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTokenStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	store := NewFileTokenStore(path)

	tokens, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Save(ctx, &TokenSet{
		AccessToken:  "a",
		IDToken:      "i",
		RefreshToken: "r",
		Username:     "driver",
		Expiry:       expiry,
	}))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	tokens, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "a", tokens.AccessToken)
	assert.Equal(t, "driver", tokens.Username)
	assert.True(t, tokens.Expiry.Equal(expiry))

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	tokens, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestFileTokenStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewFileTokenStore(path).Load(context.Background())
	require.Error(t, err)
}

func TestMemoryTokenStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	original := &TokenSet{AccessToken: "a"}
	require.NoError(t, store.Save(ctx, original))
	original.AccessToken = "mutated"

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.AccessToken)

	loaded.AccessToken = "mutated"
	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again.AccessToken)
}
