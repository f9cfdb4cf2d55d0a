package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSTarget archives into a directory tree on the local filesystem.
type FSTarget struct {
	// Root is the base directory; keys become paths relative to it.
	Root string
}

var _ Target = (*FSTarget)(nil)

// Put writes body to <Root>/<key>, creating parent directories as needed.
// The write goes through a temporary sibling and a rename so a partially
// archived artifact is never visible under its final name.
func (t *FSTarget) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := filepath.Join(t.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if size >= 0 && n != size {
		_ = os.Remove(tmp)
		return fmt.Errorf("short copy for %q: wrote %d of %d bytes", key, n, size)
	}
	return os.Rename(tmp, dest)
}
