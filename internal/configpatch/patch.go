// Package configpatch implements order-preserving
// read-modify-write of the active profile's dns/fake-ip and tun
// subsections, validated and published as domain events.
package configpatch

import (
	"strings"

	"github.com/zhugenanbei181/music-frog-sub001/internal/errs"
)

// FakeIPPatch carries the dns section's fake-ip subkeys. A nil field
// means "not present in this patch, leave unchanged".
type FakeIPPatch struct {
	FakeIPRange  *string
	FakeIPFilter *[]string
	StoreFakeIP  *bool
}

// TunPatch carries the tun section's patchable subkeys.
type TunPatch struct {
	Enable              *bool
	Stack               *string
	DNSHijack           *[]string
	AutoRoute           *bool
	AutoDetectInterface *bool
	MTU                 *int
	StrictRoute         *bool
}

func validateStack(s string) error {
	switch strings.ToLower(s) {
	case "system", "gvisor":
		return nil
	default:
		return errs.Validation(`tun.stack must be "system" or "gvisor", got %q`, s)
	}
}

func validateNoEmptyEntries(field string, values []string) error {
	for _, v := range values {
		if v == "" {
			return errs.Validation("%s must not contain empty entries", field)
		}
	}
	return nil
}

// ApplyFakeIPPatch rewrites the dns section's fake-ip subkeys.
func ApplyFakeIPPatch(content string, patch FakeIPPatch) (string, error) {
	doc, err := parseDoc(content)
	if err != nil {
		return "", err
	}
	root := doc.Content[0]
	section := ensureSection(root, "dns")

	if patch.FakeIPRange != nil {
		if strings.TrimSpace(*patch.FakeIPRange) == "" {
			return "", errs.Validation("dns.fake-ip-range must not be empty when present")
		}
		setKey(section, "fake-ip-range", strNode(*patch.FakeIPRange))
	}
	if patch.FakeIPFilter != nil {
		if err := validateNoEmptyEntries("dns.fake-ip-filter", *patch.FakeIPFilter); err != nil {
			return "", err
		}
		setKey(section, "fake-ip-filter", listNode(*patch.FakeIPFilter))
	}
	if patch.StoreFakeIP != nil {
		setKey(section, "store-fake-ip", boolNode(*patch.StoreFakeIP))
	}

	removeSectionIfEmpty(root, "dns")
	return marshalDoc(doc)
}

// ApplyTunPatch rewrites the tun section.
func ApplyTunPatch(content string, patch TunPatch) (string, error) {
	doc, err := parseDoc(content)
	if err != nil {
		return "", err
	}
	root := doc.Content[0]
	section := ensureSection(root, "tun")

	if patch.Enable != nil {
		setKey(section, "enable", boolNode(*patch.Enable))
	}
	if patch.Stack != nil {
		if err := validateStack(*patch.Stack); err != nil {
			return "", err
		}
		setKey(section, "stack", strNode(*patch.Stack))
	}
	if patch.DNSHijack != nil {
		if err := validateNoEmptyEntries("tun.dns-hijack", *patch.DNSHijack); err != nil {
			return "", err
		}
		setKey(section, "dns-hijack", listNode(*patch.DNSHijack))
	}
	if patch.AutoRoute != nil {
		setKey(section, "auto-route", boolNode(*patch.AutoRoute))
	}
	if patch.AutoDetectInterface != nil {
		setKey(section, "auto-detect-interface", boolNode(*patch.AutoDetectInterface))
	}
	if patch.MTU != nil {
		if *patch.MTU <= 0 {
			return "", errs.Validation("tun.mtu must be greater than 0")
		}
		setKey(section, "mtu", intNode(*patch.MTU))
	}
	if patch.StrictRoute != nil {
		setKey(section, "strict-route", boolNode(*patch.StrictRoute))
	}

	removeSectionIfEmpty(root, "tun")
	return marshalDoc(doc)
}
