package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the default plugin configuration file path.
const DefaultFile = "/etc/plexmon/plugins.yaml"

// Wildcard is the file section applied to every plugin.
const Wildcard = "*"

// File holds per-plugin option sections read from a YAML file:
//
//	"*":
//	  query_timeout: 10s
//	asteriskstats:
//	  amihost: 192.168.1.10
//	  list_codecs: [alaw, ulaw, gsm]
//
// Sequences are joined with commas so they resolve like list options.
type File map[string]Map

// ParseFile reads a plugin configuration file.
// If optional is set, a missing file yields an empty File.
func ParseFile(path string, optional bool) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return File{}, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := parseFileData(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

func parseFileData(data []byte) (File, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	f := make(File, len(raw))
	for section, opts := range raw {
		m := make(Map, len(opts))
		for key, val := range opts {
			s, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", section, key, err)
			}
			m[key] = s
		}
		f[section] = m
	}
	return f, nil
}

func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	case map[string]any:
		return "", errors.New("nested mappings are not supported")
	default:
		return fmt.Sprint(t), nil
	}
}

// Section returns the options for a plugin: the wildcard section overlaid
// with the plugin's own section.
func (f File) Section(plugin string) Map {
	m := make(Map)
	for k, v := range f[Wildcard] {
		m[k] = v
	}
	for k, v := range f[plugin] {
		m[k] = v
	}
	return m
}
