package syncengine

import (
	"strings"

	"github.com/zhugenanbei181/music-frog-sub001/internal/syncstate"
)

// SyncAction is the verb the executor runs for one canonical remote
// path, derived from the three-way local/remote/state comparison.
type SyncAction int

const (
	ActionNone SyncAction = iota
	ActionUpload
	ActionUploadIfMatch
	ActionDownload
	ActionConflict
	ActionDeleteLocal
	ActionDeleteRemote
	ActionPruneState
)

// PlannedItem is one row of the computed sync plan.
type PlannedItem struct {
	RelativePath string
	Action       SyncAction
	Local        *LocalEntry
	Remote       *RemoteEntry
	State        syncstate.Row
}

// canonicalRemotePath is the state-store key for a relative path:
// exactly one leading slash.
func canonicalRemotePath(rel string) string {
	return "/" + strings.TrimPrefix(rel, "/")
}

// Plan unions the local/remote/state key sets and derives an action
// for each. The state map is keyed by canonical remote path; locals
// and remotes by relative path.
func Plan(locals []LocalEntry, remotes []RemoteEntry, state map[string]syncstate.Row) []PlannedItem {
	localByPath := map[string]LocalEntry{}
	for _, l := range locals {
		localByPath[l.RelativePath] = l
	}
	remoteByPath := map[string]RemoteEntry{}
	for _, r := range remotes {
		remoteByPath[r.RelativePath] = r
	}
	stateByRel := map[string]syncstate.Row{}
	for k, row := range state {
		stateByRel[strings.TrimPrefix(k, "/")] = row
	}

	keys := map[string]struct{}{}
	for k := range localByPath {
		keys[k] = struct{}{}
	}
	for k := range remoteByPath {
		keys[k] = struct{}{}
	}
	for k := range stateByRel {
		keys[k] = struct{}{}
	}

	items := make([]PlannedItem, 0, len(keys))
	for k := range keys {
		local, hasLocal := localByPath[k]
		remote, hasRemote := remoteByPath[k]
		row, hasState := stateByRel[k]

		item := PlannedItem{RelativePath: k, State: row}
		if hasLocal {
			item.Local = &local
		}
		if hasRemote {
			item.Remote = &remote
		}
		item.Action = deriveAction(hasLocal, hasRemote, hasState, local, remote, row)
		items = append(items, item)
	}
	return items
}

func deriveAction(hasLocal, hasRemote, hasState bool, local LocalEntry, remote RemoteEntry, row syncstate.Row) SyncAction {
	switch {
	case hasLocal && !hasRemote:
		if hasState && row.Tombstone {
			return ActionDeleteLocal
		}
		return ActionUpload

	case !hasLocal && hasRemote:
		if !hasState {
			return ActionDownload
		}
		if row.Tombstone {
			return ActionDeleteRemote
		}
		if remote.ETag != row.LastETag {
			return ActionDownload
		}
		return ActionDeleteRemote

	case hasLocal && hasRemote:
		if !hasState {
			return ActionUpload
		}
		hashSame := local.Hash == row.LastHash
		etagSame := remote.ETag == row.LastETag
		switch {
		case hashSame && etagSame:
			return ActionNone
		case !hashSame && etagSame:
			return ActionUploadIfMatch
		case hashSame && !etagSame:
			return ActionDownload
		default:
			return ActionConflict
		}

	default: // neither present, only a leftover/tombstone state row
		return ActionPruneState
	}
}
