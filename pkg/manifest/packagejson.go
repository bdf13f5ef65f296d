package manifest

import (
	"context"
	"encoding/json"
	"maps"
	"os"

	"github.com/matzehuels/deptree/pkg/deps"
	"github.com/matzehuels/deptree/pkg/errors"
)

const (
	// FileName is the manifest file name npm looks for.
	FileName = "package.json"

	// projectRoot names manifests without a "name" field.
	projectRoot = "__project__"

	// projectVersion versions manifests without a "version" field.
	projectVersion = "0.0.0"
)

// PackageJSON is the subset of a package.json that affects installation.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	OS                   []string          `json:"os"`
	CPU                  []string          `json:"cpu"`
}

// Options selects which dependency groups become part of the project root.
type Options struct {
	Dev bool // Include devDependencies, as a plain `npm install` does
}

// Parse reads a package.json file.
func Parse(path string) (*PackageJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "manifest not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}

	var pj PackageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse %s", path)
	}
	return &pj, nil
}

// RootName is the name the project is resolved under.
func (p *PackageJSON) RootName() string {
	if p.Name == "" {
		return projectRoot
	}
	return p.Name
}

// RootVersion is the exact version the project is resolved at.
func (p *PackageJSON) RootVersion() string {
	if p.Version == "" {
		return projectVersion
	}
	return p.Version
}

// Packument builds the single-version packument of the project.
//
// Peer dependencies are installed automatically since npm 7, so they are
// added as regular dependencies unless the same name is already listed.
// Dev dependencies are added only with [Options.Dev]. Optional
// dependencies keep their own group so platform mismatches stay silent.
func (p *PackageJSON) Packument(opts Options) *deps.Packument {
	required := make(map[string]string)
	maps.Copy(required, p.PeerDependencies)
	if opts.Dev {
		maps.Copy(required, p.DevDependencies)
	}
	maps.Copy(required, p.Dependencies)

	optional := make(map[string]string, len(p.OptionalDependencies))
	for name, rng := range p.OptionalDependencies {
		optional[name] = rng
		delete(required, name)
	}

	version := p.RootVersion()
	return &deps.Packument{
		Name:     p.RootName(),
		DistTags: map[string]string{"latest": version},
		Versions: map[string]*deps.PackumentVersion{
			version: {
				Dependencies:         required,
				OptionalDependencies: optional,
				OS:                   p.OS,
				CPU:                  p.CPU,
			},
		},
	}
}

// Fetcher serves root for its own name and asks inner for everything else.
func Fetcher(root *deps.Packument, inner deps.Fetcher) deps.Fetcher {
	return deps.FetcherFunc(func(ctx context.Context, name string) *deps.Packument {
		if name == root.Name {
			return root
		}
		return inner.Fetch(ctx, name)
	})
}
