// Package config reads optional YAML or TOML files holding default values
// for command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.Sentinel("unsupported config file format")

// Values maps flag names to values. Nested tables are flattened with '-'
// so "plot: {max-points: 50}" sets --plot-max-points.
type Values map[string]string

// Load reads a .yaml, .yml or .toml file.
func Load(path string) (Values, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	raw := make(map[string]interface{})
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, errors.WithDetails(ErrUnsupportedFormat, "path", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}

	values := make(Values)
	flatten("", raw, values)
	return values, nil
}

func flatten(prefix string, in map[string]interface{}, out Values) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "-" + k
		}
		switch val := v.(type) {
		case map[string]interface{}:
			flatten(key, val, out)
		case []interface{}:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			out[key] = strings.Join(parts, ",")
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Apply sets every flag of cmd that was not given on the command line and
// has a value in v. Keys naming no flag of cmd are ignored since one file
// may serve several commands.
func (v Values) Apply(cmd *cobra.Command) error {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flags := cmd.Flags()
	for _, name := range keys {
		flag := flags.Lookup(name)
		if flag == nil {
			log.WithField("key", name).Debug("config key does not match any flag")
			continue
		}
		if flag.Changed {
			continue
		}
		if err := flags.Set(name, v[name]); err != nil {
			return errors.WrapWithDetails(err, "applying config value", "flag", name)
		}
	}
	return nil
}
