package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/traderadar/backend/internal/apperr"
)

// fileSource holds the optional YAML layer under the environment. It is read
// once per process from config/config-<CONFIG_PHASE>.yaml, or from CONFIG_FILE
// when that is set.
type fileSource struct {
	once   sync.Once
	err    error
	values map[string]string
	phase  string
	path   string
	loaded bool
}

var runtimeFile fileSource

func ensureRuntimeConfigLoaded() error {
	runtimeFile.once.Do(runtimeFile.load)
	return runtimeFile.err
}

func (f *fileSource) load() {
	f.values = map[string]string{}
	f.phase = strings.TrimSpace(os.Getenv("CONFIG_PHASE"))
	if f.phase == "" {
		f.phase = "local"
	}

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = filepath.Join("config", "config-"+f.phase+".yaml")
	}

	values, err := readConfigFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
		return
	case err != nil:
		f.err = err
		return
	}
	f.values = values
	f.loaded = true
	f.path = path
	if abs, err := filepath.Abs(path); err == nil {
		f.path = abs
	}
}

// readConfigFile flattens a YAML document into UPPER_SNAKE keys:
// `oracle: {cache-ttl: 30s}` becomes ORACLE_CACHE_TTL=30s and sequences
// become comma-joined lists.
func readConfigFile(path string) (map[string]string, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, apperr.E(apperr.KindConfig, "parse config file "+path, err)
	}

	out := map[string]string{}
	if len(doc.Content) == 0 {
		return out, nil
	}
	if err := flattenNode("", doc.Content[0], out); err != nil {
		return nil, apperr.E(apperr.KindConfig, "flatten config file "+path, err)
	}
	return out, nil
}

func flattenNode(prefix string, node *yaml.Node, out map[string]string) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			segment := keySegment(node.Content[i].Value)
			if segment == "" {
				continue
			}
			key := segment
			if prefix != "" {
				key = prefix + "_" + segment
			}
			if err := flattenNode(key, node.Content[i+1], out); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("%s: list items must be scalars", prefix)
			}
			if value := strings.TrimSpace(item.Value); value != "" {
				items = append(items, value)
			}
		}
		out[prefix] = strings.Join(items, ",")
	case yaml.ScalarNode:
		if prefix != "" && node.Tag != "!!null" {
			out[prefix] = node.Value
		}
	case yaml.AliasNode:
		return flattenNode(prefix, node.Alias, out)
	}
	return nil
}

// keySegment upper-cases a YAML key and collapses every run of
// non-alphanumerics into one underscore.
func keySegment(raw string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.TrimSpace(raw) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// lookup returns the environment value for key, then the file value.
func lookup(key string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	if ensureRuntimeConfigLoaded() != nil {
		return ""
	}
	return strings.TrimSpace(runtimeFile.values[key])
}

// parsed reads key with parse, or returns fallback when key is unset.
func parsed[T any](key string, fallback T, parse func(string) (T, error)) (T, error) {
	raw := lookup(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := parse(raw)
	if err != nil {
		var zero T
		return zero, apperr.Errorf(apperr.KindConfig, "load config", "invalid %s: %v", key, err)
	}
	return value, nil
}

func envOrDefault(key, fallback string) string {
	if value := lookup(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	return parsed(key, fallback, func(raw string) (time.Duration, error) {
		d, err := time.ParseDuration(raw)
		if err == nil && d <= 0 {
			err = errors.New("must be > 0")
		}
		return d, err
	})
}

func envInt(key string, fallback int) (int, error) {
	return parsed(key, fallback, func(raw string) (int, error) {
		v, err := strconv.Atoi(raw)
		if err == nil && v <= 0 {
			err = errors.New("must be > 0")
		}
		return v, err
	})
}

func envNonNegativeInt(key string, fallback int) (int, error) {
	return parsed(key, fallback, func(raw string) (int, error) {
		v, err := strconv.Atoi(raw)
		if err == nil && v < 0 {
			err = errors.New("must be >= 0")
		}
		return v, err
	})
}

func envBool(key string, fallback bool) (bool, error) {
	return parsed(key, fallback, strconv.ParseBool)
}

// parseCSVEnv splits a comma list, dropping blanks. An empty result yields
// fallback.
func parseCSVEnv(raw string, fallback []string) []string {
	out := make([]string, 0, strings.Count(raw, ",")+1)
	for part := range strings.SplitSeq(raw, ",") {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
