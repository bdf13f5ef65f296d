package npm

import (
	"bytes"
	"encoding/json"

	"github.com/matzehuels/deptree/pkg/deps"
)

// registryResponse is the subset of a registry document used for
// resolution. Readmes, maintainers and the time map are never decoded.
type registryResponse struct {
	Name     string                     `json:"name"`
	DistTags map[string]string          `json:"dist-tags"`
	Versions map[string]versionManifest `json:"versions"`
}

type versionManifest struct {
	Dependencies         dependencyMap `json:"dependencies"`
	OptionalDependencies dependencyMap `json:"optionalDependencies"`
	OS                   stringList    `json:"os"`
	CPU                  stringList    `json:"cpu"`
	Libc                 stringList    `json:"libc"`
	Deprecated           deprecation   `json:"deprecated"`
	Dist                 struct {
		UnpackedSize float64 `json:"unpackedSize"`
	} `json:"dist"`
}

func (r *registryResponse) packument() *deps.Packument {
	p := &deps.Packument{
		Name:     r.Name,
		DistTags: r.DistTags,
		Versions: make(map[string]*deps.PackumentVersion, len(r.Versions)),
	}
	for v, m := range r.Versions {
		p.Versions[v] = &deps.PackumentVersion{
			Dependencies:         m.Dependencies,
			OptionalDependencies: m.OptionalDependencies,
			OS:                   m.OS,
			CPU:                  m.CPU,
			Libc:                 m.Libc,
			Deprecated:           string(m.Deprecated),
			Dist:                 deps.Dist{UnpackedSize: int64(m.Dist.UnpackedSize)},
		}
	}
	return p
}

// stringList accepts both "linux" and ["linux", "darwin"].
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	out := make(stringList, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// deprecation holds a deprecation message. Some publishers set
// "deprecated": false, which means not deprecated; true carries no message.
type deprecation string

func (d *deprecation) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		*d = deprecation(val)
	case bool:
		if val {
			*d = "deprecated"
		} else {
			*d = ""
		}
	default:
		*d = ""
	}
	return nil
}

// dependencyMap decodes a name to range object. Very old documents carry
// arrays or non-string ranges here; those entries are ignored rather than
// failing the whole packument.
type dependencyMap map[string]string

func (m *dependencyMap) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		*m = nil
		return nil
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	out := make(dependencyMap, len(raw))
	for name, v := range raw {
		if s, ok := v.(string); ok {
			out[name] = s
		}
	}
	*m = out
	return nil
}
