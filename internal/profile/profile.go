// Package profile manages the on-disk collection of YAML profiles,
// the single active-profile pointer, and per-profile subscription
// metadata.
package profile

import (
	"strings"
	"time"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// illegalNameChars are rejected in profile names: each is either a
// path separator or unrepresentable on some filesystem.
const illegalNameChars = `/\:*?"<>|`

// Profile is one entry in the library. Content (the YAML body) is not
// embedded here; callers read it from disk via Store.LoadContent when they
// need it, keeping the catalog (Store.List) cheap.
type Profile struct {
	Name                string     `json:"name"`
	Path                string     `json:"path"`
	Active              bool       `json:"active"`
	SubscriptionURL     string     `json:"subscription_url,omitempty"`
	AutoUpdateEnabled   bool       `json:"auto_update_enabled"`
	UpdateIntervalHours int        `json:"update_interval_hours"`
	LastUpdated         *time.Time `json:"last_updated,omitempty"`
	NextUpdate          *time.Time `json:"next_update,omitempty"`
}

// SubscriptionState tracks where a profile sits in its subscription
// lifecycle.
type SubscriptionState int

const (
	NoSubscription SubscriptionState = iota
	Pending
	UpdatingAuto
	UpdatingManual
)

// ValidateName requires a name that is non-empty after trimming and
// free of path-hostile characters.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errs.Validation("profile name must not be empty")
	}
	if strings.ContainsAny(trimmed, illegalNameChars) {
		return errs.Validation("profile name %q contains an illegal character", name)
	}
	return nil
}

// DefaultUpdateIntervalHours is the fallback when a subscription is
// attached without specifying a cadence.
const DefaultUpdateIntervalHours = 24

// MinUpdateIntervalHours is the floor on the cadence.
const MinUpdateIntervalHours = 1

// NormalizeInterval applies the default and the minimum.
func NormalizeInterval(hours int) int {
	if hours <= 0 {
		hours = DefaultUpdateIntervalHours
	}
	if hours < MinUpdateIntervalHours {
		hours = MinUpdateIntervalHours
	}
	return hours
}

// Due reports whether the profile's next scheduled update has arrived
// (or it has never been updated).
func (p *Profile) Due(now time.Time) bool {
	if !p.AutoUpdateEnabled {
		return false
	}
	if p.NextUpdate == nil {
		return true
	}
	return !now.Before(*p.NextUpdate)
}
