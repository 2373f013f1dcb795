package imagestore

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubtype(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"data:image/png;base64,aGVsbG8=", "png", false},
		{"data:image/jpeg;base64,aGVsbG8=", "jpeg", false},
		{"data:image/svg+xml;base64,aGVsbG8=", "svg+xml", false},
		{"data:text/plain;base64,aGVsbG8=", "", true},
		{"not a data uri", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSubtype(tt.uri)
		if tt.wantErr {
			assert.Error(t, err, "uri %q", tt.uri)
			continue
		}
		require.NoError(t, err, "uri %q", tt.uri)
		assert.Equal(t, tt.want, got)
	}
}

func TestDiskStorePersist(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(filepath.Join(dir, "avatars"), "/avatars/")
	require.NoError(t, err)

	payload := base64.StdEncoding.EncodeToString([]byte("fake image bytes"))
	ref, err := store.Persist(context.Background(), "group_1_123.png", "data:image/png;base64,"+payload)
	require.NoError(t, err)
	assert.Equal(t, "/avatars/group_1_123.png", ref)

	written, err := os.ReadFile(filepath.Join(dir, "avatars", "group_1_123.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fake image bytes"), written)
}

func TestDiskStorePersistRejectsMalformed(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/avatars")
	require.NoError(t, err)

	_, err = store.Persist(context.Background(), "x.png", "plaintext")
	assert.Error(t, err)

	_, err = store.Persist(context.Background(), "x.png", "data:image/png;base64,%%%bad%%%")
	assert.Error(t, err)
}
