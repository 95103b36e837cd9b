package core

import (
	"fmt"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvSource is a read-only view over configuration variables.
type EnvSource interface {
	Lookup(key string) (string, bool)
	Environ() map[string]string
}

// MapEnv is an EnvSource over a fixed map.
type MapEnv map[string]string

func (m MapEnv) Lookup(key string) (string, bool) {
	value, ok := m[key]
	return value, ok
}

func (m MapEnv) Environ() map[string]string {
	out := make(map[string]string, len(m))
	for key, value := range m {
		out[key] = value
	}
	return out
}

// OSEnv reads the process environment.
func OSEnv() EnvSource {
	return MapEnv(env.ToMap(os.Environ()))
}

// NewEnvSource reads dotenv files and overlays the process environment on
// top, so exported variables win over file values. Missing files are skipped.
func NewEnvSource(files ...string) (EnvSource, error) {
	merged := map[string]string{}
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("core: stat env file %s: %w", file, err)
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("core: read env file %s: %w", file, err)
		}
		for key, value := range values {
			merged[key] = value
		}
	}
	for key, value := range env.ToMap(os.Environ()) {
		merged[key] = value
	}
	return MapEnv(merged), nil
}

// EnvSpec describes how a provider reads its configuration. Aliases maps a
// canonical variable to candidate names checked in order; the first one set
// wins. Extras maps an app credential extra field to its candidate names.
type EnvSpec struct {
	Prefix  string
	Aliases map[string][]string
	Extras  map[string][]string
}

// Resolve returns the environment with aliases folded into their canonical
// names.
func (s EnvSpec) Resolve(source EnvSource) map[string]string {
	if source == nil {
		return map[string]string{}
	}
	resolved := source.Environ()
	for canonical, candidates := range s.Aliases {
		if value, ok := firstSet(source, candidates); ok {
			resolved[canonical] = value
		}
	}
	return resolved
}

// LoadAppCredentials overlays env values on defaults using s.
func LoadAppCredentials(source EnvSource, spec EnvSpec, defaults AppCredentials) (AppCredentials, error) {
	creds := defaults.Clone()
	if source == nil {
		return creds.withDefaults(), nil
	}
	if err := env.ParseWithOptions(&creds, env.Options{
		Environment: spec.Resolve(source),
		Prefix:      spec.Prefix,
	}); err != nil {
		return AppCredentials{}, TypeError("invalid app credentials environment: " + err.Error())
	}
	for _, field := range sortedKeys(spec.Extras) {
		if value, ok := firstSet(source, spec.Extras[field]); ok {
			creds = creds.WithExtra(field, value)
		}
	}
	return creds.withDefaults(), nil
}

// LoadEnvInto parses the aliased environment into target, a pointer to a
// struct tagged for caarlos0/env.
func LoadEnvInto(source EnvSource, spec EnvSpec, target any) error {
	if source == nil {
		return nil
	}
	if err := env.ParseWithOptions(target, env.Options{
		Environment: spec.Resolve(source),
		Prefix:      spec.Prefix,
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(value string) (any, error) {
				return ParseTimeout(value)
			},
		},
	}); err != nil {
		return TypeError("invalid settings environment: " + err.Error())
	}
	return nil
}

// ParseTimeout reads a timeout given either as seconds ("10", "2.5") or as a
// Go duration ("10s").
func ParseTimeout(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return SecondsDuration(seconds)
	}
	return time.ParseDuration(value)
}

// SecondsDuration converts fractional seconds to a duration.
func SecondsDuration(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("invalid timeout %v", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func firstSet(source EnvSource, names []string) (string, bool) {
	for _, name := range names {
		if value, ok := source.Lookup(name); ok && strings.TrimSpace(value) != "" {
			return value, true
		}
	}
	return "", false
}
