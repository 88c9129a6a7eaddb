package versionmgr

import (
	"sort"
	"strconv"
	"strings"
)

// parsedVersion is the (major, minor, patch) triple versions are
// sorted by. coreos/go-semver enforces a strict `major.minor.patch`
// grammar and rejects anything else (a bare "v1", or junk like
// "invalid"), but display ordering has to tolerate those: missing
// components default to zero and unparseable strings still sort,
// just last. So versions are parsed by hand here rather than through
// semver.NewVersion; go-semver only validates release tags in
// Manager.Install.
type parsedVersion struct {
	major, minor, patch int
	ok                  bool
	raw                 string
}

// parseVersion extracts the numeric triple: strip a leading
// "v", strip anything from the first "-" on, split on ".", parse up
// to three numeric components, default missing ones to zero.
func parseVersion(s string) parsedVersion {
	raw := s
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(s, '-'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return parsedVersion{raw: raw}
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return parsedVersion{raw: raw}
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return parsedVersion{raw: raw}
		}
		nums[i] = n
	}
	return parsedVersion{major: nums[0], minor: nums[1], patch: nums[2], ok: true, raw: raw}
}

// lessDescending reports whether a belongs before b when versions are
// sorted greatest-first: parseable versions compare numerically
// (larger first), parseable always outranks unparseable, and any tie
// (equal triples, or two unparseable strings) falls back to reverse
// lexical order; unparseable strings trail every parseable entry.
func lessDescending(a, b string) bool {
	pa, pb := parseVersion(a), parseVersion(b)
	switch {
	case pa.ok && pb.ok:
		if pa.major != pb.major {
			return pa.major > pb.major
		}
		if pa.minor != pb.minor {
			return pa.minor > pb.minor
		}
		if pa.patch != pb.patch {
			return pa.patch > pb.patch
		}
		return strings.Compare(a, b) > 0
	case pa.ok && !pb.ok:
		return true
	case !pa.ok && pb.ok:
		return false
	default:
		return strings.Compare(a, b) > 0
	}
}

// SortDescending orders versions so the greatest comes first.
func SortDescending(versions []string) []string {
	out := make([]string, len(versions))
	copy(out, versions)
	sort.SliceStable(out, func(i, j int) bool { return lessDescending(out[i], out[j]) })
	return out
}
