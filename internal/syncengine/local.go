// Package syncengine plans and executes two-way synchronization
// between the local profile directory and a WebDAV remote, driven by
// the scheduler on each sync tick: index both sides, compare against
// the recorded sync state, act on the difference.
package syncengine

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// LocalEntry is one YAML/TOML file under the local profile root.
type LocalEntry struct {
	RelativePath string // POSIX-normalized, relative to local_root
	AbsPath      string
	Hash         string // md5_hex of file contents
}

func isSyncable(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml" || ext == ".toml"
}

// IndexLocal recursively walks root, hashing every YAML/TOML file it
// finds.
func IndexLocal(root string) ([]LocalEntry, error) {
	var entries []LocalEntry
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isSyncable(info.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, LocalEntry{
			RelativePath: toPosix(rel),
			AbsPath:      p,
			Hash:         md5Hex(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func toPosix(p string) string {
	return strings.ReplaceAll(p, string(filepath.Separator), "/")
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
