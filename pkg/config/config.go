// Package config resolves Context configuration from three layers, in
// increasing precedence: compiled-in defaults, an optional YAML overlay
// file, and explicit properties passed at Context construction.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Properties is a flat key/value property bag, matching the recognized
// keys a Context accepts.
type Properties map[string]string

// defaults are the compiled-in values for every recognized key.
var defaults = Properties{
	"EPICS_CA_ADDR_LIST":       "",
	"EPICS_CA_AUTO_ADDR_LIST":  "true",
	"EPICS_CA_CONN_TMO":        "30",
	"EPICS_CA_BEACON_PERIOD":   "15",
	"EPICS_CA_SERVER_PORT":     "5064",
	"EPICS_CA_REPEATER_PORT":   "5065",
	"EPICS_CA_MAX_ARRAY_BYTES": "16384",
	"CA_MONITOR_NOTIFIER_IMPL": "multi-worker,16",
}

// Resolved is the fully-merged configuration for one Context.
type Resolved struct {
	props Properties
}

// Load merges defaults, an optional YAML file (yamlPath may be empty to
// skip it), and explicit overrides, in that precedence order.
func Load(yamlPath string, overrides Properties) (*Resolved, error) {
	merged := make(Properties, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}

	if yamlPath != "" {
		fileProps, err := loadYAMLFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", yamlPath, err)
		}
		for k, v := range fileProps {
			merged[k] = v
		}
	}

	for k, v := range overrides {
		merged[k] = v
	}

	return &Resolved{props: merged}, nil
}

func loadYAMLFile(path string) (Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(Properties, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

// String returns the raw string value for key, or def if unset.
func (r *Resolved) String(key, def string) string {
	if v, ok := r.props[key]; ok {
		return v
	}
	return def
}

// Int parses key as an integer, returning def on a missing or malformed
// value.
func (r *Resolved) Int(key string, def int) int {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// Bool parses key as a boolean, returning def on a missing or malformed
// value.
func (r *Resolved) Bool(key string, def bool) bool {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// StringList splits key on whitespace, returning nil if unset or empty.
func (r *Resolved) StringList(key string) []string {
	v, ok := r.props[key]
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return strings.Fields(v)
}

// Raw returns the fully-merged property bag, e.g. for diagnostics.
func (r *Resolved) Raw() Properties {
	out := make(Properties, len(r.props))
	for k, v := range r.props {
		out[k] = v
	}
	return out
}
