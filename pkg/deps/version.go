package deps

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// nonRegistryPrefixes mark dependency specs that point outside the registry.
var nonRegistryPrefixes = []string{
	"http://", "https://",
	"git:", "git+", "git@", "github:",
	"file:", "link:", "workspace:",
}

// ResolveVersion picks the concrete version that rng selects from versions.
// It returns false when nothing matches or when rng is not a registry range
// at all (git, URL, file and workspace specs).
//
// An exact match wins outright, so pinned pre-releases resolve even though
// ranges never select them. "npm:name@range" aliases resolve their range
// part. Anything else is a semver range and yields the highest satisfying
// version.
func ResolveVersion(rng string, versions []string) (string, bool) {
	if slices.Contains(versions, rng) {
		return rng, true
	}

	if strings.HasPrefix(rng, "npm:") {
		if i := strings.LastIndex(rng, "@"); i > 4 {
			return ResolveVersion(rng[i+1:], versions)
		}
		return "", false
	}

	if !isRegistryRange(rng) {
		return "", false
	}

	return maxSatisfying(rng, versions)
}

func isRegistryRange(rng string) bool {
	for _, p := range nonRegistryPrefixes {
		if strings.HasPrefix(rng, p) {
			return false
		}
	}
	return !strings.Contains(rng, "/")
}

// prereleaseComparator finds versions carrying a pre-release inside range text.
var prereleaseComparator = regexp.MustCompile(`v?(\d+)\.(\d+)\.(\d+)-[0-9A-Za-z.-]+`)

// alternative is one "||" branch of a range.
type alternative struct {
	constraint *semver.Constraints
	// prereleaseTuples holds the major.minor.patch of every comparator in
	// the branch that names a pre-release.
	prereleaseTuples []string
}

func parseRange(rng string) ([]alternative, bool) {
	var alts []alternative
	for _, part := range strings.Split(rng, "||") {
		part = strings.TrimSpace(part)
		if part == "" {
			part = "*"
		}
		c, err := semver.NewConstraint(part)
		if err != nil {
			return nil, false
		}
		alt := alternative{constraint: c}
		for _, m := range prereleaseComparator.FindAllStringSubmatch(part, -1) {
			alt.prereleaseTuples = append(alt.prereleaseTuples, m[1]+"."+m[2]+"."+m[3])
		}
		alts = append(alts, alt)
	}
	return alts, len(alts) > 0
}

// satisfies applies the npm pre-release rule on top of the constraint: a
// pre-release only matches a branch that names a pre-release on the same
// major.minor.patch.
func (a alternative) satisfies(v *semver.Version) bool {
	if !a.constraint.Check(v) {
		return false
	}
	if v.Prerelease() == "" {
		return true
	}
	tuple := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	return slices.Contains(a.prereleaseTuples, tuple)
}

func maxSatisfying(rng string, versions []string) (string, bool) {
	rng = strings.TrimSpace(rng)
	if rng == "" {
		rng = "*"
	}
	alts, ok := parseRange(rng)
	if !ok {
		return "", false
	}

	var best *semver.Version
	var bestRaw string
	for _, raw := range versions {
		v, err := semver.StrictNewVersion(raw)
		if err != nil {
			continue
		}
		if !slices.ContainsFunc(alts, func(a alternative) bool { return a.satisfies(v) }) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, bestRaw = v, raw
		}
	}
	return bestRaw, best != nil
}
