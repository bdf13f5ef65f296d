package deps

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matzehuels/deptree/pkg/errors"
)

// Packument is the registry document for one package name: every published
// version plus the dist-tags pointing into them. A Packument is never
// modified after it has been fetched, so it can be shared freely between
// concurrent resolutions.
type Packument struct {
	Name     string                       `json:"name"`
	DistTags map[string]string            `json:"dist-tags,omitempty"`
	Versions map[string]*PackumentVersion `json:"versions"`
}

// VersionList returns the published version strings in lexical order.
func (p *Packument) VersionList() []string {
	vs := make([]string, 0, len(p.Versions))
	for v := range p.Versions {
		vs = append(vs, v)
	}
	slices.Sort(vs)
	return vs
}

// PackumentVersion holds the manifest facts of one published version that
// matter for resolution.
type PackumentVersion struct {
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	OS                   []string          `json:"os,omitempty"`
	CPU                  []string          `json:"cpu,omitempty"`
	Libc                 []string          `json:"libc,omitempty"`
	Deprecated           string            `json:"deprecated,omitempty"`
	Dist                 Dist              `json:"dist"`
}

// Dist describes the published tarball.
type Dist struct {
	UnpackedSize int64 `json:"unpackedSize,omitempty"`
}

// Depth classifies how far a package sits from the root.
type Depth string

const (
	DepthRoot       Depth = "root"
	DepthDirect     Depth = "direct"
	DepthTransitive Depth = "transitive"
)

// depthForLevel maps a BFS level onto its depth label.
func depthForLevel(level int) Depth {
	switch level {
	case 0:
		return DepthRoot
	case 1:
		return DepthDirect
	default:
		return DepthTransitive
	}
}

func (d Depth) rank() int {
	switch d {
	case DepthRoot:
		return 0
	case DepthDirect:
		return 1
	case DepthTransitive:
		return 2
	default:
		return 3
	}
}

// ResolvedPackage is one entry of a resolved tree. Depth and Path are only
// set when the resolution tracked depth.
type ResolvedPackage struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Size       int64    `json:"size"`
	Optional   bool     `json:"optional"`
	Depth      Depth    `json:"depth,omitempty"`
	Path       []string `json:"path,omitempty"`
	Deprecated string   `json:"deprecated,omitempty"`
}

// Key returns the tree key of the package.
func (p *ResolvedPackage) Key() string { return Key(p.Name, p.Version) }

// Key builds the "name@version" key used by [Tree].
func Key(name, version string) string { return name + "@" + version }

// Tree maps "name@version" to the package resolved under that key.
type Tree map[string]*ResolvedPackage

// Keys returns the tree keys in sorted order.
func (t Tree) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Sorted returns the packages ordered by depth (root first) and then by key.
// Untracked depths sort after every tracked one.
func (t Tree) Sorted() []*ResolvedPackage {
	pkgs := make([]*ResolvedPackage, 0, len(t))
	for _, p := range t {
		pkgs = append(pkgs, p)
	}
	slices.SortFunc(pkgs, func(a, b *ResolvedPackage) int {
		if c := cmp.Compare(a.Depth.rank(), b.Depth.rank()); c != 0 {
			return c
		}
		return strings.Compare(a.Key(), b.Key())
	})
	return pkgs
}

// TotalSize sums the unpacked sizes of all packages.
func (t Tree) TotalSize() int64 {
	var total int64
	for _, p := range t {
		total += p.Size
	}
	return total
}

// Deprecated returns the deprecated packages sorted by key.
func (t Tree) Deprecated() []*ResolvedPackage {
	var out []*ResolvedPackage
	for _, k := range t.Keys() {
		if t[k].Deprecated != "" {
			out = append(out, t[k])
		}
	}
	return out
}

// Counts returns the number of packages per depth. Without depth tracking
// every package is counted under the empty Depth.
func (t Tree) Counts() map[Depth]int {
	counts := make(map[Depth]int)
	for _, p := range t {
		counts[p.Depth]++
	}
	return counts
}

// Root returns the root package, if the tree tracked depth and the root
// resolved.
func (t Tree) Root() (*ResolvedPackage, bool) {
	for _, p := range t {
		if p.Depth == DepthRoot {
			return p, true
		}
	}
	return nil, false
}

// WithoutDepth returns a copy of the tree with Depth and Path cleared, as if
// it had been resolved without depth tracking.
func (t Tree) WithoutDepth() Tree {
	out := make(Tree, len(t))
	for k, p := range t {
		cp := *p
		cp.Depth, cp.Path = "", nil
		out[k] = &cp
	}
	return out
}

// ParseSpec splits "name@range" into its parts. Scoped names keep their
// leading "@"; a spec without a range yields an empty range.
//
//	ParseSpec("@babel/core@^7")  // "@babel/core", "^7"
//	ParseSpec("react")           // "react", ""
func ParseSpec(spec string) (name, rng string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "package spec cannot be empty")
	}
	name = spec
	if i := strings.LastIndex(spec, "@"); i > 0 {
		name, rng = spec[:i], spec[i+1:]
	}
	if err := ValidateName(name); err != nil {
		return "", "", err
	}
	return name, rng, nil
}

// ValidateName rejects names that cannot be npm package names.
func ValidateName(name string) error {
	return errors.ValidateNpmPackageName(name)
}
