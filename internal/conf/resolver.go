package conf

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"checkup/internal/ignore"
)

// Config is the fully resolved configuration for one check pass. It is
// immutable once resolved; a fresh resolution picks up file changes through
// the cached readers.
type Config struct {
	// Parameters holds every merged setting under the `parameters` key except
	// ignoreErrors. Maps merge recursively, sequences concatenate, scalars
	// take the later-merged value.
	Parameters map[string]any
	// IgnoreErrors is the flattened rule set from the root config and all
	// includes, in declaration order: root entries first, then each include's
	// entries in inclusion order.
	IgnoreErrors *ignore.Set
}

// document is the top-level shape of one config file.
type document struct {
	Includes   []string  `yaml:"includes"`
	Parameters yaml.Node `yaml:"parameters"`
}

// Resolver parses a root config file and deep-merges its includes.
type Resolver struct {
	Registry *Registry
	Logger   *log.Logger
}

// Resolve reads rootPath (through the registry's cached readers), parses it,
// and recursively merges every included file. Include paths are resolved
// relative to the including file's directory. Re-including an already resolved
// file is skipped with one logged line.
func (r *Resolver) Resolve(rootPath string) (*Config, error) {
	cfg := &Config{
		Parameters:   make(map[string]any),
		IgnoreErrors: &ignore.Set{},
	}
	seen := make(map[string]bool)
	if err := r.resolve(filepath.Clean(rootPath), cfg, seen); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *Resolver) resolve(path string, acc *Config, seen map[string]bool) error {
	if seen[path] {
		r.logf("config %s: already included, skipping to avoid a cycle", path)
		return nil
	}
	seen[path] = true

	content, err := r.Registry.Reader(path).Read()
	if err != nil {
		return err
	}

	var doc document
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return &ParseError{Path: path, Err: err}
	}

	r.mergeParameters(acc, &doc, path)

	for _, inc := range doc.Includes {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(filepath.Dir(path), incPath)
		}
		if err := r.resolve(filepath.Clean(incPath), acc, seen); err != nil {
			return err
		}
	}
	return nil
}

// mergeParameters folds one document's parameters into the accumulator.
// Individual values that fail to decode are logged and dropped; they never
// abort the resolution.
func (r *Resolver) mergeParameters(acc *Config, doc *document, path string) {
	if doc.Parameters.Kind == 0 {
		return
	}
	var params map[string]yaml.Node
	if err := doc.Parameters.Decode(&params); err != nil {
		r.logf("config %s: parameters is not a mapping: %v", path, err)
		return
	}
	for key, node := range params {
		if key == "ignoreErrors" {
			acc.IgnoreErrors.Append(r.parseRules(&node, path)...)
			continue
		}
		var v any
		if err := node.Decode(&v); err != nil {
			r.logf("config %s: invalid value for %q: %v", path, key, err)
			continue
		}
		acc.Parameters[key] = mergeValue(acc.Parameters[key], v)
	}
}

// parseRules converts an ignoreErrors sequence into rules. A malformed entry
// becomes an invalid-rule marker carrying the raw text and is reported here,
// once per resolution.
func (r *Resolver) parseRules(list *yaml.Node, path string) []*ignore.Rule {
	if list.Kind != yaml.SequenceNode {
		r.logf("config %s: ignoreErrors is not a sequence, ignoring", path)
		return nil
	}
	rules := make([]*ignore.Rule, 0, len(list.Content))
	for _, item := range list.Content {
		rule, err := parseRule(item)
		if err != nil {
			raw := rawText(item)
			r.logf("config %s: invalid ignoreErrors entry %q: %v", path, raw, err)
			rules = append(rules, &ignore.Rule{Raw: raw})
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

func parseRule(item *yaml.Node) (*ignore.Rule, error) {
	switch item.Kind {
	case yaml.ScalarNode:
		m, err := ignore.Compile(item.Value)
		if err != nil {
			return nil, err
		}
		return &ignore.Rule{Message: m}, nil

	case yaml.MappingNode:
		var raw struct {
			Message string   `yaml:"message"`
			Count   *int     `yaml:"count"`
			Path    string   `yaml:"path"`
			Paths   []string `yaml:"paths"`
		}
		if err := item.Decode(&raw); err != nil {
			return nil, err
		}
		if raw.Message == "" {
			return nil, fmt.Errorf("missing message")
		}
		if raw.Count != nil && *raw.Count < 0 {
			return nil, fmt.Errorf("count must not be negative")
		}
		m, err := ignore.Compile(raw.Message)
		if err != nil {
			return nil, err
		}
		paths := raw.Paths
		if raw.Path != "" {
			paths = append([]string{raw.Path}, paths...)
		}
		return &ignore.Rule{Message: m, Count: raw.Count, Paths: paths}, nil

	default:
		return nil, fmt.Errorf("entry must be a string or a mapping")
	}
}

// rawText renders a node back to text for invalid-entry reporting.
func rawText(n *yaml.Node) string {
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		return fmt.Sprintf("entry at line %d", n.Line)
	}
	return strings.TrimSpace(string(out))
}

// mergeValue combines src into dst: maps merge recursively, sequences
// concatenate, anything else takes the later value.
func mergeValue(dst, src any) any {
	if dm, ok := dst.(map[string]any); ok {
		if sm, ok := src.(map[string]any); ok {
			for k, v := range sm {
				dm[k] = mergeValue(dm[k], v)
			}
			return dm
		}
	}
	if ds, ok := dst.([]any); ok {
		if ss, ok := src.([]any); ok {
			return append(ds, ss...)
		}
	}
	return src
}

func (r *Resolver) logf(format string, args ...any) {
	l := r.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}
