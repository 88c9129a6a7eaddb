package configpatch

import (
	"os"
	"path/filepath"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
	"github.com/zhugenanbei181/music-frog-sub001/internal/events"
	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
	"github.com/zhugenanbei181/music-frog-sub001/internal/profile"
)

// Patcher loads the active profile, applies a patch, saves the
// result, and publishes the corresponding domain event.
type Patcher struct {
	Profiles *profile.Store
	Bus      *events.Bus
	Paths    *platform.Paths
}

func (p *Patcher) activeContent() (name, content string, err error) {
	name, ok := p.Profiles.ActiveName()
	if !ok {
		return "", "", errs.NotFound("no active profile")
	}
	content, err = p.Profiles.LoadContent(name)
	if err != nil {
		return "", "", err
	}
	return name, content, nil
}

// PatchFakeIP applies patch to the active profile's dns/fake-ip
// subkeys and publishes fake-ip-changed.
func (p *Patcher) PatchFakeIP(patch FakeIPPatch) error {
	name, content, err := p.activeContent()
	if err != nil {
		return err
	}
	updated, err := ApplyFakeIPPatch(content, patch)
	if err != nil {
		return err
	}
	if err := p.Profiles.Save(name, updated); err != nil {
		return err
	}
	p.Bus.Publish(events.FakeIPChanged, nil)
	return nil
}

// PatchTun applies patch to the active profile's tun section and
// publishes tun-changed.
func (p *Patcher) PatchTun(patch TunPatch) error {
	name, content, err := p.activeContent()
	if err != nil {
		return err
	}
	updated, err := ApplyTunPatch(content, patch)
	if err != nil {
		return err
	}
	if err := p.Profiles.Save(name, updated); err != nil {
		return err
	}
	p.Bus.Publish(events.TunChanged, nil)
	return nil
}

// ClearFakeIPCache deletes <config_dir>/fake-ip-cache if present.
func (p *Patcher) ClearFakeIPCache() error {
	err := os.Remove(filepath.Join(p.Paths.ConfigsDir(), "fake-ip-cache"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
