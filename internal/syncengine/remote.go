package syncengine

import (
	"context"
	"strings"

	"github.com/zhugenanbei181/music-frog-sub001/internal/webdavclient"
)

// RemoteEntry is one file under the remote sync root, already
// adjusted to be relative to that root.
type RemoteEntry struct {
	RelativePath string
	ETag         string
	Size         int64
}

// IndexRemote walks remoteRoot depth-first, one PROPFIND per
// collection, returning only the files.
func IndexRemote(ctx context.Context, client *webdavclient.Client, remoteRoot string) ([]RemoteEntry, error) {
	var files []RemoteEntry
	var walk func(dir string) error
	walk = func(dir string) error {
		children, err := client.List(ctx, dir)
		if err != nil {
			return err
		}
		for _, c := range children {
			if relativeTo(dir, c.Path) == "" {
				continue // the directory entry for dir itself
			}
			rel := relativeTo(remoteRoot, c.Path)
			if c.IsDir {
				if err := walk(c.Path); err != nil {
					return err
				}
				continue
			}
			files = append(files, RemoteEntry{RelativePath: rel, ETag: c.ETag, Size: c.ContentLength})
		}
		return nil
	}
	if err := walk(remoteRoot); err != nil {
		return nil, err
	}
	return files, nil
}

// relativeTo strips root's path prefix from full, returning "" when
// full names root itself (the self-entry PROPFIND returns for the
// directory being listed).
func relativeTo(root, full string) string {
	root = strings.TrimSuffix(root, "/")
	full = strings.TrimSuffix(full, "/")
	if full == root || full == "" {
		return ""
	}
	return strings.TrimPrefix(strings.TrimPrefix(full, root), "/")
}
