package shipper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirUploader writes objects as files under Dir, keys mapping to relative
// paths.
type DirUploader struct {
	Dir string
}

// Upload writes obj atomically via a temp file and rename.
func (u DirUploader) Upload(_ context.Context, obj Object) error {
	dst := filepath.Join(u.Dir, filepath.FromSlash(obj.Key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("dir upload: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("dir upload: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(obj.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("dir upload %s: %w", obj.Key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dir upload %s: %w", obj.Key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("dir upload %s: %w", obj.Key, err)
	}
	return nil
}
