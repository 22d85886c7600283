package staging

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rxtech-lab/ohlcv-sync/pkg/errors"
)

// tempPrefix marks in-flight uploads; List never reports them.
const tempPrefix = ".staging-"

// LocalStore keeps objects as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed and returns a store over it.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "local staging directory is required")
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to create staging directory %s", root)
	}

	return &LocalStore{root: root}, nil
}

// Root returns the directory objects are stored in.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || slices.Contains(strings.Split(key, "/"), "..") {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "invalid object key: %q", key)
	}

	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes body to a temporary file next to the target and renames it into place.
func (s *LocalStore) Put(ctx context.Context, key string, body io.ReadSeeker) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to create directory for %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to create temporary file for %s", key)
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, body); err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to write %s", key)
	}

	if err = tmp.Sync(); err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to sync %s", key)
	}

	if err = tmp.Close(); err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to close %s", key)
	}

	if err = os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to move %s into place", key)
	}

	return nil
}

// Get opens the file stored under key.
func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrCodeArtifactNotFound, "object not found: %s", key)
		}

		return nil, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to open %s", key)
	}

	return f, nil
}

// List walks the root directory and returns objects under prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objects = append(objects, Object{Key: key, Size: info.Size(), LastModified: info.ModTime()})

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to list %s", s.root)
	}

	slices.SortFunc(objects, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })

	return objects, nil
}

// Head reports whether a file exists for key.
func (s *LocalStore) Head(_ context.Context, key string) (bool, error) {
	path, err := s.path(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to stat %s", key)
}

// Delete removes the files for keys.
func (s *LocalStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := s.path(key)
		if err != nil {
			return err
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(errors.ErrCodeStagingFailed, err, "failed to delete %s", key)
		}
	}

	return nil
}
