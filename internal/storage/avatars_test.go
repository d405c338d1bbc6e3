package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsjmendez/adonde/internal/domain"
)

func TestAvatarStoreSaveAndList(t *testing.T) {
	s := NewAvatarStore(afero.NewMemMapFs(), "https://cdn.example.com/media/")

	url, err := s.Save(context.Background(), "user:alice", "selfie.PNG", strings.NewReader("img-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/media/avatars/user_alice/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)

	_, err = s.Save(context.Background(), "user:alice", "other.jpg", strings.NewReader("img-bytes"))
	require.NoError(t, err)

	urls, err := s.List(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.Len(t, urls, 2)

	urls, err = s.List(context.Background(), "user:bob")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestAvatarStoreRejectsUnsupportedType(t *testing.T) {
	s := NewAvatarStore(afero.NewMemMapFs(), "https://cdn.example.com")

	_, err := s.Save(context.Background(), "user:alice", "notes.txt", strings.NewReader("nope"))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAvatarStoreRejectsOversizedUpload(t *testing.T) {
	s := NewAvatarStore(afero.NewMemMapFs(), "https://cdn.example.com")

	big := strings.NewReader(strings.Repeat("x", MaxAvatarBytes+1))
	_, err := s.Save(context.Background(), "user:alice", "huge.png", big)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	urls, err := s.List(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestAvatarStoreDelete(t *testing.T) {
	s := NewAvatarStore(afero.NewMemMapFs(), "https://cdn.example.com")

	url, err := s.Save(context.Background(), "user:alice", "a.png", strings.NewReader("img"))
	require.NoError(t, err)

	// Another user cannot delete it.
	require.ErrorIs(t, s.Delete(context.Background(), "user:bob", url), domain.ErrUnauthorized)

	require.NoError(t, s.Delete(context.Background(), "user:alice", url))
	urls, err := s.List(context.Background(), "user:alice")
	require.NoError(t, err)
	assert.Empty(t, urls)

	// Foreign URLs are rejected outright.
	err = s.Delete(context.Background(), "user:alice", "https://elsewhere/evil.png")
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
