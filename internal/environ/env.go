package environ

import (
	"os"
	"strconv"
	"strings"
	"time"

	"k8s.io/kube-openapi/pkg/validation/strfmt"
)

// Prefix is prepended to every key looked up by this package, so that
// GetString("LOG_FILE", ...) reads MEMWATCH_LOG_FILE.
const Prefix = "MEMWATCH_"

// Key returns the environment variable name used for key.
func Key(key string) string {
	return Prefix + strings.ToUpper(key)
}

func lookup(key string) (string, bool) {
	return os.LookupEnv(Key(key))
}

func GetString(key, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}

	return fallback
}

func GetInt(key string, fallback int) int {
	if value, ok := lookup(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}

	return fallback
}

func GetBool(key string, fallback bool) bool {
	if value, ok := lookup(key); ok {
		return value == "true"
	}

	return fallback
}

// GetDuration accepts anything strfmt understands, including day units
// such as "1d" which time.ParseDuration rejects.
func GetDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok {
		if t, err := strfmt.ParseDuration(value); err == nil {
			return t
		}
	}
	return fallback
}
