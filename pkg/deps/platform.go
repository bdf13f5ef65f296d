package deps

import "strings"

// Platform is the install target a tree is resolved for.
type Platform struct {
	OS   string `json:"os"`
	CPU  string `json:"cpu"`
	Libc string `json:"libc"`
}

// DefaultPlatform is linux on x64 with glibc, the most common install target.
func DefaultPlatform() Platform {
	return Platform{OS: "linux", CPU: "x64", Libc: "glibc"}
}

// IsZero reports whether no axis is set.
func (p Platform) IsZero() bool { return p == Platform{} }

func (p Platform) String() string {
	return p.OS + "/" + p.CPU + "/" + p.Libc
}

// ParsePlatform parses "os/cpu/libc". Missing trailing parts are taken from
// [DefaultPlatform], so "darwin/arm64" is accepted.
func ParsePlatform(s string) Platform {
	p := DefaultPlatform()
	parts := strings.Split(s, "/")
	for i, v := range parts {
		if v == "" {
			continue
		}
		switch i {
		case 0:
			p.OS = v
		case 1:
			p.CPU = v
		case 2:
			p.Libc = v
		}
	}
	return p
}

// Matches reports whether v may be installed on p. Every axis must pass:
// an empty restriction list always passes, otherwise any token naming the
// target or any "!token" excluding a different value passes.
func (p Platform) Matches(v *PackumentVersion) bool {
	return axisMatches(v.OS, p.OS) && axisMatches(v.CPU, p.CPU) && axisMatches(v.Libc, p.Libc)
}

func axisMatches(tokens []string, target string) bool {
	if len(tokens) == 0 {
		return true
	}
	for _, t := range tokens {
		if neg, ok := strings.CutPrefix(t, "!"); ok {
			if neg != target {
				return true
			}
		} else if t == target {
			return true
		}
	}
	return false
}
