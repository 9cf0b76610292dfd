package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile declares a family of telemetry channel columns by header prefix.
// Columns matching no profile are passed through untouched; columns matching
// a profile are parsed as numeric samples and fed into resampling and
// statistics.
type Profile struct {
	Name string

	// ChannelPrefix matches column headers, e.g. "Cell Voltage" matches
	// "Cell Voltage 1" ... "Cell Voltage 16".
	ChannelPrefix string

	// ZeroValid keeps literal-zero readings as valid samples. Off for
	// voltage channels: the logger emits 0 when a cell tap is disconnected.
	ZeroValid bool
}

// rawProfile is the on-disk YAML shape. zero_valid is a pointer so an absent
// key falls back to the global zero_invalid toggle rather than false.
type rawProfile struct {
	Name          string `yaml:"name"`
	ChannelPrefix string `yaml:"channel_prefix"`
	ZeroValid     *bool  `yaml:"zero_valid"`
}

// Set holds the loaded profiles in file order. First match wins.
type Set struct {
	profiles []Profile
}

// Default returns the built-in profile set used when no profile directory is
// configured: cell-voltage columns, with zero validity derived from the
// global zero_invalid toggle.
func Default(zeroInvalid bool) *Set {
	return &Set{profiles: []Profile{{
		Name:          "cell-voltage",
		ChannelPrefix: "Cell Voltage",
		ZeroValid:     !zeroInvalid,
	}}}
}

// LoadDir eagerly loads all *.yaml profiles from dir. A missing directory is
// not an error: the built-in default applies. zeroInvalid is the global
// toggle seeding profiles that omit zero_valid. Malformed files fail the
// load: profiles shape what every downstream number means, so a typo must
// not be silent.
func LoadDir(dir string, zeroInvalid bool) (*Set, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return Default(zeroInvalid), nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profile path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading profile dir: %w", err)
	}

	set := &Set{}
	seen := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading profile file %s: %w", path, err)
		}

		var raw rawProfile
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing profile file %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}
		if strings.TrimSpace(raw.ChannelPrefix) == "" {
			return nil, fmt.Errorf("profile %q: channel_prefix must not be empty", raw.Name)
		}
		if _, exists := seen[raw.Name]; exists {
			return nil, fmt.Errorf("profile %q: duplicate profile name (check multiple YAML files)", raw.Name)
		}
		seen[raw.Name] = struct{}{}

		zeroValid := !zeroInvalid
		if raw.ZeroValid != nil {
			zeroValid = *raw.ZeroValid
		}
		set.profiles = append(set.profiles, Profile{
			Name:          raw.Name,
			ChannelPrefix: raw.ChannelPrefix,
			ZeroValid:     zeroValid,
		})
	}

	if len(set.profiles) == 0 {
		return Default(zeroInvalid), nil
	}
	return set, nil
}

// Match returns the first profile whose prefix matches the column header.
func (s *Set) Match(column string) (Profile, bool) {
	for _, p := range s.profiles {
		if strings.HasPrefix(column, p.ChannelPrefix) {
			return p, true
		}
	}
	return Profile{}, false
}

// Profiles returns the loaded profiles in matching order.
func (s *Set) Profiles() []Profile {
	return s.profiles
}
