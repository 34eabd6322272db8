// Package config loads plugin configuration from struct tag defaults,
// YAML or JSON files, and environment variables. Values are resolved in
// layers, lowest priority first:
//
//	envDefault struct tags
//	YAML/JSON config files, in the order they were added
//	environment variables
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable. On a
//     nested struct the tag becomes a prefix for the struct's fields.
//   - `envDefault:"value"` sets a default when the field is zero-valued.
//   - `required:"true"` fails validation if the field is still zero after
//     loading.
//
// File loading uses the `yaml` and `json` tags of the target struct.
//
// # Usage
//
//	cfg := config.MustLoad[config.PluginConfig](
//	    config.New().WithEnvPrefix("PLUGIN").WithFile("plugin.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// LookupFunc resolves an environment variable. It has the signature of
// [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// Loader resolves configuration layers into a struct. Use [New] to create
// one and configure it before calling [Loader.Load].
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	files     []string
	lookup    LookupFunc
}

// New creates a Loader that reads environment variables only.
func New() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// WithEnvPrefix sets a prefix joined with "_" in front of every variable
// name. The prefix is uppercased; an empty prefix disables prefixing.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(strings.TrimSuffix(prefix, "_"))
	return l
}

// WithFile adds a YAML (.yaml, .yml) or JSON (.json) file. Files are
// applied in the order they were added, so later files override earlier
// ones. A missing file is skipped. Paths containing ".." are rejected by
// [Loader.Load].
func (l *Loader) WithFile(path string) *Loader {
	l.files = append(l.files, path)
	return l
}

// WithLookup replaces the environment lookup, typically with a map-backed
// function in tests.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	if fn == nil {
		fn = os.LookupEnv
	}
	l.lookup = fn
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, and
// validates it. Loading failures carry [sserr.CodeInternalConfiguration];
// missing required fields carry [sserr.CodeValidationRequired]; a failing
// [Validator] yields its own error or [sserr.CodeValidation].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	root := rv.Elem()

	err := walk(root, "", l.envPrefix, func(f leaf) error {
		if f.def == "" || !f.value.IsZero() {
			return nil
		}
		if err := setField(f.value, f.def); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: invalid default for %s", f.path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, path := range l.files {
		if err := loadFile(path, cfg); err != nil {
			return err
		}
	}

	err = walk(root, "", l.envPrefix, func(f leaf) error {
		if f.envKey == "" {
			return nil
		}
		raw, ok := l.lookup(f.envKey)
		if !ok {
			return nil
		}
		if err := setField(f.value, raw); err != nil {
			return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
				"config: invalid value for %s from %s", f.path, f.envKey)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return validate(cfg, root)
}

// MustLoad loads a T with loader and panics on failure. Use it in main,
// where an invalid configuration should stop the plugin from starting.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func loadFile(path string, cfg any) error {
	if strings.Contains(path, "..") {
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: file path %q must not contain \"..\"", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read %q", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml or .json)", ext)
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse %q", path)
	}
	return nil
}
