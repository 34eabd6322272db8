package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-plugins/pkg/errors"
)

// ===========================================================================
// Test Types
// ===========================================================================

type basicConfig struct {
	Host    string        `env:"HOST" envDefault:"localhost" yaml:"host" json:"host"`
	Port    int           `env:"PORT" envDefault:"8080" yaml:"port" json:"port"`
	Debug   bool          `env:"DEBUG" yaml:"debug" json:"debug"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s" yaml:"timeout" json:"timeout"`
}

type kindsConfig struct {
	Ratio   float64  `env:"RATIO"`
	Retries uint8    `env:"RETRIES"`
	Conns   int32    `env:"CONNS" envDefault:"25"`
	Tags    []string `env:"TAGS" envDefault:"a,b,c"`
	Token   Secret   `env:"TOKEN"`
}

type nestedConfig struct {
	App   string      `env:"APP"`
	Store storeConfig `env:"STORE" yaml:"store"`
}

type storeConfig struct {
	Addr string `env:"ADDR" yaml:"addr"`
	Name string `env:"NAME" required:"true" yaml:"name"`
}

type portConfig struct {
	Port int `env:"PORT"`
}

func (c *portConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return sserr.Newf(sserr.CodeValidation,
			"config: port %d is out of range [1, 65535]", c.Port)
	}
	return nil
}

type stdlibValidated struct {
	Name string `env:"NAME"`
}

func (c *stdlibValidated) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// env returns a LookupFunc backed by m.
func env(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// writeTestFile writes content to name inside a fresh temp directory.
func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

// ===========================================================================
// Argument Tests
// ===========================================================================

// TestLoader_Load_RejectsNonStructPointer verifies that Load only accepts
// a non-nil pointer to a struct.
func TestLoader_Load_RejectsNonStructPointer(t *testing.T) {
	var nilPtr *basicConfig
	n := 3
	for _, cfg := range []any{nil, basicConfig{}, nilPtr, &n} {
		err := New().Load(cfg)
		if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
			t.Errorf("Load(%T) error = %v, want %s", cfg, err, sserr.CodeInternalConfiguration)
		}
	}
}

// ===========================================================================
// Layering Tests
// ===========================================================================

// TestLoader_Load_Defaults verifies that envDefault tags fill zero fields.
func TestLoader_Load_Defaults(t *testing.T) {
	var cfg basicConfig
	if err := New().WithLookup(env(nil)).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "localhost" || cfg.Port != 8080 || cfg.Timeout != 30*time.Second {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

// TestLoader_Load_DefaultsKeepExisting verifies that preset values are not
// replaced by defaults.
func TestLoader_Load_DefaultsKeepExisting(t *testing.T) {
	cfg := basicConfig{Host: "preset"}
	if err := New().WithLookup(env(nil)).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "preset" {
		t.Errorf("Host = %q, want %q", cfg.Host, "preset")
	}
}

// TestLoader_Load_YAMLFile verifies that a YAML file overrides defaults.
func TestLoader_Load_YAMLFile(t *testing.T) {
	path := writeTestFile(t, "plugin.yaml", `
host: filehost
port: 3000
debug: true
`)
	var cfg basicConfig
	if err := New().WithLookup(env(nil)).WithFile(path).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "filehost" || cfg.Port != 3000 || !cfg.Debug {
		t.Errorf("cfg = %+v, want values from file", cfg)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default 30s", cfg.Timeout)
	}
}

// TestLoader_Load_JSONFile verifies JSON file loading.
func TestLoader_Load_JSONFile(t *testing.T) {
	path := writeTestFile(t, "plugin.json", `{"host": "jsonhost", "port": 4000}`)
	var cfg basicConfig
	if err := New().WithLookup(env(nil)).WithFile(path).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "jsonhost" || cfg.Port != 4000 {
		t.Errorf("cfg = %+v, want values from file", cfg)
	}
}

// TestLoader_Load_LaterFileWins verifies that files apply in order.
func TestLoader_Load_LaterFileWins(t *testing.T) {
	base := writeTestFile(t, "base.yaml", "host: base\nport: 1000\n")
	override := writeTestFile(t, "override.yml", "host: override\n")

	var cfg basicConfig
	if err := New().WithLookup(env(nil)).WithFile(base).WithFile(override).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "override" {
		t.Errorf("Host = %q, want %q", cfg.Host, "override")
	}
	if cfg.Port != 1000 {
		t.Errorf("Port = %d, want %d", cfg.Port, 1000)
	}
}

// TestLoader_Load_MissingFile verifies that a missing file is skipped.
func TestLoader_Load_MissingFile(t *testing.T) {
	var cfg basicConfig
	if err := New().WithLookup(env(nil)).WithFile("/nonexistent/plugin.yaml").Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

// TestLoader_Load_FileErrors verifies rejected paths, extensions and
// malformed content.
func TestLoader_Load_FileErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"traversal", "../etc/plugin.yaml"},
		{"extension", writeTestFile(t, "plugin.toml", "host = 'x'")},
		{"bad yaml", writeTestFile(t, "bad.yaml", "host: [unclosed")},
		{"bad json", writeTestFile(t, "bad.json", "{host:")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg basicConfig
			err := New().WithLookup(env(nil)).WithFile(tt.path).Load(&cfg)
			if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
				t.Errorf("Load() error = %v, want %s", err, sserr.CodeInternalConfiguration)
			}
		})
	}
}

// TestLoader_Load_EnvOverridesFile verifies that environment variables have
// the highest priority.
func TestLoader_Load_EnvOverridesFile(t *testing.T) {
	path := writeTestFile(t, "plugin.yaml", "host: filehost\nport: 3000\n")
	var cfg basicConfig
	err := New().
		WithEnvPrefix("plugin").
		WithLookup(env(map[string]string{"PLUGIN_HOST": "envhost"})).
		WithFile(path).
		Load(&cfg)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Host != "envhost" {
		t.Errorf("Host = %q, want %q", cfg.Host, "envhost")
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want file value 3000", cfg.Port)
	}
}

// TestLoader_Load_OSEnvironment verifies that the default lookup reads the
// process environment.
func TestLoader_Load_OSEnvironment(t *testing.T) {
	t.Setenv("CFGTEST_PORT", "9191")
	var cfg basicConfig
	if err := New().WithEnvPrefix("CFGTEST_").Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9191)
	}
}

// ===========================================================================
// Field Kind Tests
// ===========================================================================

// TestLoader_Load_Kinds verifies the supported field kinds.
func TestLoader_Load_Kinds(t *testing.T) {
	var cfg kindsConfig
	err := New().WithLookup(env(map[string]string{
		"RATIO":   "0.75",
		"RETRIES": "3",
		"TOKEN":   "s3cr3t",
	})).Load(&cfg)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Ratio != 0.75 {
		t.Errorf("Ratio = %v, want 0.75", cfg.Ratio)
	}
	if cfg.Retries != 3 {
		t.Errorf("Retries = %d, want 3", cfg.Retries)
	}
	if cfg.Conns != 25 {
		t.Errorf("Conns = %d, want 25", cfg.Conns)
	}
	if len(cfg.Tags) != 3 || cfg.Tags[0] != "a" || cfg.Tags[2] != "c" {
		t.Errorf("Tags = %v, want [a b c]", cfg.Tags)
	}
	if cfg.Token.Value() != "s3cr3t" {
		t.Errorf("Token.Value() = %q, want %q", cfg.Token.Value(), "s3cr3t")
	}
}

// TestLoader_Load_SliceSkipsEmpty verifies that empty list elements are
// dropped.
func TestLoader_Load_SliceSkipsEmpty(t *testing.T) {
	var cfg kindsConfig
	if err := New().WithLookup(env(map[string]string{"TAGS": " x, ,y ,"})).Load(&cfg); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Tags) != 2 || cfg.Tags[0] != "x" || cfg.Tags[1] != "y" {
		t.Errorf("Tags = %v, want [x y]", cfg.Tags)
	}
}

// TestLoader_Load_InvalidEnvValues verifies that parse failures report the
// variable.
func TestLoader_Load_InvalidEnvValues(t *testing.T) {
	tests := map[string]string{
		"PORT":    "not-a-number",
		"DEBUG":   "maybe",
		"TIMEOUT": "forever",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			var cfg basicConfig
			err := New().WithLookup(env(map[string]string{key: val})).Load(&cfg)
			if !sserr.HasCode(err, sserr.CodeInternalConfiguration) {
				t.Fatalf("Load() error = %v, want %s", err, sserr.CodeInternalConfiguration)
			}
		})
	}
}

// ===========================================================================
// Nested Struct Tests
// ===========================================================================

// TestLoader_Load_NestedEnvPrefix verifies that a nested struct's env tag
// prefixes its fields.
func TestLoader_Load_NestedEnvPrefix(t *testing.T) {
	var cfg nestedConfig
	err := New().WithEnvPrefix("P").WithLookup(env(map[string]string{
		"P_APP":        "demo",
		"P_STORE_ADDR": "redis:6379",
		"P_STORE_NAME": "options",
	})).Load(&cfg)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.App != "demo" || cfg.Store.Addr != "redis:6379" || cfg.Store.Name != "options" {
		t.Errorf("cfg = %+v", cfg)
	}
}

// TestLoader_Load_NestedRequired verifies that required fields inside
// nested structs are reported with their dotted path.
func TestLoader_Load_NestedRequired(t *testing.T) {
	var cfg nestedConfig
	err := New().WithLookup(env(nil)).Load(&cfg)
	if !sserr.HasCode(err, sserr.CodeValidationRequired) {
		t.Fatalf("Load() error = %v, want %s", err, sserr.CodeValidationRequired)
	}
	e, _ := sserr.AsError(err)
	if e.Message != `config: required field "Store.Name" is empty` {
		t.Errorf("Message = %q", e.Message)
	}
}

// ===========================================================================
// Validator Tests
// ===========================================================================

// TestLoader_Load_Validator verifies that Validate runs after loading and
// that *sserr.Error results pass through unchanged.
func TestLoader_Load_Validator(t *testing.T) {
	var ok portConfig
	if err := New().WithLookup(env(map[string]string{"PORT": "443"})).Load(&ok); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	var bad portConfig
	err := New().WithLookup(env(map[string]string{"PORT": "70000"})).Load(&bad)
	if !sserr.HasCode(err, sserr.CodeValidation) {
		t.Fatalf("Load() error = %v, want %s", err, sserr.CodeValidation)
	}
}

// TestLoader_Load_ValidatorStdlibError verifies that plain errors from
// Validate are wrapped as validation errors.
func TestLoader_Load_ValidatorStdlibError(t *testing.T) {
	var cfg stdlibValidated
	err := New().WithLookup(env(nil)).Load(&cfg)
	if !sserr.IsValidation(err) {
		t.Fatalf("Load() error = %v, want validation error", err)
	}
	if errors.Unwrap(err) == nil {
		t.Error("wrapped error should keep its cause")
	}
}

// ===========================================================================
// MustLoad Tests
// ===========================================================================

// TestMustLoad verifies the success and panic paths.
func TestMustLoad(t *testing.T) {
	cfg := MustLoad[basicConfig](New().WithLookup(env(nil)))
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustLoad should panic on a missing required field")
		}
	}()
	_ = MustLoad[nestedConfig](New().WithLookup(env(nil)))
}
