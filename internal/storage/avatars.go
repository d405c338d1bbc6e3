package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/itsjmendez/adonde/internal/domain"
)

// allowedAvatarExts are the accepted upload extensions.
var allowedAvatarExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// MaxAvatarBytes bounds a single avatar upload.
const MaxAvatarBytes = 5 << 20

// AvatarStore keeps user avatars on an afero filesystem under a
// per-user prefix and hands out public URLs. Production uses OsFs
// rooted at the storage dir; tests use MemMapFs.
type AvatarStore struct {
	fs      afero.Fs
	baseURL string
}

// NewAvatarStore creates a store. baseURL is the public prefix the
// returned URLs are rooted at.
func NewAvatarStore(fs afero.Fs, baseURL string) *AvatarStore {
	return &AvatarStore{fs: fs, baseURL: strings.TrimRight(baseURL, "/")}
}

// Save writes one avatar for the user and returns its public URL. The
// stored name is randomized; the original name only contributes its
// extension.
func (s *AvatarStore) Save(ctx context.Context, userID, filename string, content io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := allowedAvatarExts[ext]; !ok {
		return "", fmt.Errorf("%w: unsupported avatar type %q", domain.ErrInvalidInput, ext)
	}

	rel := path.Join(userKey(userID), uuid.NewString()+ext)
	if err := s.fs.MkdirAll(path.Dir(rel), 0o755); err != nil {
		return "", fmt.Errorf("creating avatar dir: %w", err)
	}

	f, err := s.fs.Create(rel)
	if err != nil {
		return "", fmt.Errorf("creating avatar file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(content, MaxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("writing avatar: %w", err)
	}
	if n > MaxAvatarBytes {
		s.fs.Remove(rel)
		return "", fmt.Errorf("%w: avatar exceeds %d bytes", domain.ErrInvalidInput, MaxAvatarBytes)
	}

	return s.baseURL + "/" + rel, nil
}

// List returns the public URLs of the user's stored avatars, sorted.
func (s *AvatarStore) List(ctx context.Context, userID string) ([]string, error) {
	dir := userKey(userID)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		// No uploads yet.
		return nil, nil
	}

	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		urls = append(urls, s.baseURL+"/"+path.Join(dir, e.Name()))
	}
	sort.Strings(urls)
	return urls, nil
}

// Delete removes one avatar by its public URL. Deleting another user's
// file is rejected.
func (s *AvatarStore) Delete(ctx context.Context, userID, url string) error {
	rel := strings.TrimPrefix(url, s.baseURL+"/")
	if rel == url || strings.Contains(rel, "..") {
		return fmt.Errorf("%w: not a managed avatar url", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(rel, userKey(userID)+"/") {
		return domain.ErrUnauthorized
	}
	if err := s.fs.Remove(rel); err != nil {
		return fmt.Errorf("removing avatar: %w", err)
	}
	return nil
}

// userKey flattens a record id (user:abc) into a directory name.
func userKey(userID string) string {
	return path.Join("avatars", strings.ReplaceAll(userID, ":", "_"))
}
