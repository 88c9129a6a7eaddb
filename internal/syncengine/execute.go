package syncengine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zhugenanbei181/music-frog-sub001/internal/syncstate"
	"github.com/zhugenanbei181/music-frog-sub001/internal/webdavclient"
)

// Result tallies one executor run, published to the event bus as the
// webdav-synced event detail.
type Result struct {
	SuccessCount int
	FailedCount  int
}

// Executor carries the dependencies Execute needs to act on a Plan.
type Executor struct {
	Client     *webdavclient.Client
	State      *syncstate.Store
	LocalRoot  string
	RemoteRoot string
	Log        *logrus.Entry
}

// Execute runs every planned item's action sequentially, logging and
// counting failures without stopping the loop.
func (e *Executor) Execute(ctx context.Context, items []PlannedItem) Result {
	var res Result
	for _, item := range items {
		if err := e.executeOne(ctx, item); err != nil {
			res.FailedCount++
			e.Log.WithError(err).WithField("path", item.RelativePath).Warn("sync action failed")
			continue
		}
		res.SuccessCount++
	}
	return res
}

func (e *Executor) remotePath(rel string) string {
	return filepath.ToSlash(filepath.Join(e.RemoteRoot, rel))
}

func (e *Executor) executeOne(ctx context.Context, item PlannedItem) error {
	switch item.Action {
	case ActionNone:
		return nil
	case ActionUpload:
		return e.upload(ctx, item, "")
	case ActionUploadIfMatch:
		return e.upload(ctx, item, item.State.LastETag)
	case ActionDownload:
		return e.download(ctx, item)
	case ActionConflict:
		return e.conflict(ctx, item)
	case ActionDeleteRemote:
		return e.deleteRemote(ctx, item)
	case ActionDeleteLocal:
		return e.deleteLocal(item)
	case ActionPruneState:
		return e.pruneState(item)
	default:
		return fmt.Errorf("unknown sync action %d", item.Action)
	}
}

func (e *Executor) upload(ctx context.Context, item PlannedItem, ifMatch string) error {
	data, err := os.ReadFile(item.Local.AbsPath)
	if err != nil {
		return err
	}
	etag, err := e.Client.Put(ctx, e.remotePath(item.RelativePath), data, ifMatch)
	if err != nil {
		return err
	}
	return e.State.Upsert(syncstate.Row{
		RemotePath: canonicalRemotePath(item.RelativePath),
		LastHash:   item.Local.Hash,
		LastETag:   etag,
		UpdatedAt:  time.Now(),
	})
}

func (e *Executor) download(ctx context.Context, item PlannedItem) error {
	data, err := e.Client.Get(ctx, e.remotePath(item.RelativePath))
	if err != nil {
		return err
	}
	localPath := filepath.Join(e.LocalRoot, item.RelativePath)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	tmp := localPath + ".sync-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, localPath); err != nil {
		return err
	}
	etag := ""
	if item.Remote != nil {
		etag = item.Remote.ETag
	}
	return e.State.Upsert(syncstate.Row{
		RemotePath: canonicalRemotePath(item.RelativePath),
		LastHash:   md5Hex(data),
		LastETag:   etag,
		UpdatedAt:  time.Now(),
	})
}

func (e *Executor) conflict(ctx context.Context, item PlannedItem) error {
	data, err := e.Client.Get(ctx, e.remotePath(item.RelativePath))
	if err != nil {
		return err
	}
	localPath := filepath.Join(e.LocalRoot, item.RelativePath)
	backup := localPath + ".remote-bak-" + time.Now().Format("20060102150405")
	return os.WriteFile(backup, data, 0o644)
}

func (e *Executor) deleteRemote(ctx context.Context, item PlannedItem) error {
	if err := e.Client.Delete(ctx, e.remotePath(item.RelativePath)); err != nil {
		return err
	}
	return e.State.MarkTombstone(canonicalRemotePath(item.RelativePath))
}

func (e *Executor) deleteLocal(item PlannedItem) error {
	localPath := filepath.Join(e.LocalRoot, item.RelativePath)
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return e.State.MarkTombstone(canonicalRemotePath(item.RelativePath))
}

// pruneState drops a row whose path no longer exists on either side;
// the tombstone has done its job once both copies are gone.
func (e *Executor) pruneState(item PlannedItem) error {
	return e.State.Remove(canonicalRemotePath(item.RelativePath))
}
