package version

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed specs/*.yaml
var specFS embed.FS

// Manifest describes the platform monitoring command surface a given
// subsystem version requires.
type Manifest struct {
	Version     string      `yaml:"version"`
	Description string      `yaml:"description"`
	Commands    CommandSpec `yaml:"commands"`
}

// CommandSpec lists the mandatory and optional commands of a manifest.
type CommandSpec struct {
	Mandatory []CmdDef `yaml:"mandatory"`
	Optional  []CmdDef `yaml:"optional"`
}

// CmdDef is a named command with its wire ID.
type CmdDef struct {
	ID   uint8  `yaml:"id"`
	Name string `yaml:"name"`
}

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Manifest)
)

// LoadManifest loads a command manifest by version string (e.g. "1.2").
func LoadManifest(ver string) (*Manifest, error) {
	cacheMu.RLock()
	if m, ok := cache[ver]; ok {
		cacheMu.RUnlock()
		return m, nil
	}
	cacheMu.RUnlock()

	data, err := specFS.ReadFile("specs/" + ver + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("manifest version %q not found: %w", ver, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", ver, err)
	}

	cacheMu.Lock()
	cache[ver] = &m
	cacheMu.Unlock()

	return &m, nil
}

// LoadCurrentManifest loads the manifest for the current version.
func LoadCurrentManifest() (*Manifest, error) {
	return LoadManifest(Current)
}

// AvailableManifests returns the version strings of all embedded
// manifests, sorted.
func AvailableManifests() ([]string, error) {
	entries, err := specFS.ReadDir("specs")
	if err != nil {
		return nil, fmt.Errorf("reading specs directory: %w", err)
	}

	var versions []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") {
			versions = append(versions, strings.TrimSuffix(name, ".yaml"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// MandatoryCommands returns the names of all mandatory commands, sorted.
func (m *Manifest) MandatoryCommands() []string {
	var out []string
	for _, c := range m.Commands.Mandatory {
		out = append(out, c.Name)
	}
	sort.Strings(out)
	return out
}

// CommandByID looks up a command definition by its wire ID.
func (m *Manifest) CommandByID(id uint8) (CmdDef, bool) {
	for _, c := range m.Commands.Mandatory {
		if c.ID == id {
			return c, true
		}
	}
	for _, c := range m.Commands.Optional {
		if c.ID == id {
			return c, true
		}
	}
	return CmdDef{}, false
}

// CheckDeclaredCommands validates a declared command set against the
// manifest for ver. Versions without an embedded manifest fall back to
// the current one.
func CheckDeclaredCommands(ver string, declared []uint8) (ValidationResult, error) {
	m, err := LoadManifest(ver)
	if err != nil {
		m, err = LoadCurrentManifest()
		if err != nil {
			return ValidationResult{}, err
		}
	}
	return ValidateCommands(m, declared), nil
}

// ValidationResult holds the outcome of validating a terminus's declared
// command set against a manifest.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateCommands checks whether a terminus's declared commands satisfy
// a manifest. Missing mandatory commands are errors; missing optional
// commands are warnings.
func ValidateCommands(m *Manifest, declared []uint8) ValidationResult {
	var result ValidationResult

	set := make(map[uint8]bool, len(declared))
	for _, id := range declared {
		set[id] = true
	}

	for _, c := range m.Commands.Mandatory {
		if !set[c.ID] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("missing mandatory command %s (0x%02x)", c.Name, c.ID))
		}
	}
	for _, c := range m.Commands.Optional {
		if !set[c.ID] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("optional command %s (0x%02x) not supported", c.Name, c.ID))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
