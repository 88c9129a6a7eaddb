package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhugenanbei181/music-frog-sub001/internal/syncstate"
)

func TestPlanUploadWhenOnlyLocal(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h1"}},
		nil, map[string]syncstate.Row{},
	)
	assertAction(t, items, "a.yaml", ActionUpload)
}

func TestPlanDeleteLocalWhenTombstoned(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h1"}},
		nil,
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", Tombstone: true}},
	)
	assertAction(t, items, "a.yaml", ActionDeleteLocal)
}

func TestPlanDownloadWhenOnlyRemoteNoState(t *testing.T) {
	items := Plan(nil, []RemoteEntry{{RelativePath: "a.yaml", ETag: "e1"}}, map[string]syncstate.Row{})
	assertAction(t, items, "a.yaml", ActionDownload)
}

func TestPlanDeleteRemoteWhenLocalDeletedAndEtagUnchanged(t *testing.T) {
	items := Plan(
		nil,
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e1"}},
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", LastETag: "e1"}},
	)
	assertAction(t, items, "a.yaml", ActionDeleteRemote)
}

func TestPlanDownloadWhenRemoteChangedSinceState(t *testing.T) {
	items := Plan(
		nil,
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e2"}},
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", LastETag: "e1"}},
	)
	assertAction(t, items, "a.yaml", ActionDownload)
}

func TestPlanUploadWhenBothPresentNoState(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h1"}},
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e1"}},
		map[string]syncstate.Row{},
	)
	assertAction(t, items, "a.yaml", ActionUpload)
}

func TestPlanNoActionWhenUnchanged(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h1"}},
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e1"}},
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", LastHash: "h1", LastETag: "e1"}},
	)
	assertAction(t, items, "a.yaml", ActionNone)
}

func TestPlanUploadIfMatchWhenLocalChangedRemoteUnchanged(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h2"}},
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e1"}},
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", LastHash: "h1", LastETag: "e1"}},
	)
	assertAction(t, items, "a.yaml", ActionUploadIfMatch)
}

func TestPlanDownloadWhenRemoteChangedLocalUnchanged(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h1"}},
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e2"}},
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", LastHash: "h1", LastETag: "e1"}},
	)
	assertAction(t, items, "a.yaml", ActionDownload)
}

func TestPlanConflictWhenBothChanged(t *testing.T) {
	items := Plan(
		[]LocalEntry{{RelativePath: "a.yaml", Hash: "h2"}},
		[]RemoteEntry{{RelativePath: "a.yaml", ETag: "e2"}},
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", LastHash: "h1", LastETag: "e1"}},
	)
	assertAction(t, items, "a.yaml", ActionConflict)
}

func TestPlanPruneWhenOnlyStateRemains(t *testing.T) {
	items := Plan(
		nil, nil,
		map[string]syncstate.Row{"/a.yaml": {RemotePath: "/a.yaml", Tombstone: true}},
	)
	assertAction(t, items, "a.yaml", ActionPruneState)
}

func assertAction(t *testing.T, items []PlannedItem, path string, want SyncAction) {
	t.Helper()
	for _, item := range items {
		if item.RelativePath == path {
			assert.Equal(t, want, item.Action, "path %q", path)
			return
		}
	}
	t.Fatalf("no planned item for %q", path)
}
