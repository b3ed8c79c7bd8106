// Package config loads configuration for quillforge-auth consumers from
// struct tag defaults, an optional YAML file, and environment variables.
// Values are resolved in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML config file        (medium priority)
//	Environment variables   (highest priority)
//
// Defaults live in the code, a config file supplies environment-specific
// overrides, and env vars (from the deployment platform) win.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` — maps the field to an environment variable
//   - `envDefault:"value"` — default applied when the field is zero-valued
//   - `required:"true"` — loading fails if the field is still zero afterwards
//
// Fields also need `yaml` tags for file-based loading.
//
// # Usage
//
//	type ServerConfig struct {
//	    Addr string      `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    Auth auth.Config `env:"AUTH" yaml:"auth"`
//	}
//
//	cfg := config.MustLoad[ServerConfig](
//	    config.New().WithEnvPrefix("QF").WithFile("config.yaml"),
//	)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	qferr "github.com/Quillforge/quillforge-auth/pkg/errors"
)

// durationType distinguishes time.Duration (Kind() == Int64) from plain
// int64 fields during struct traversal.
var durationType = reflect.TypeOf(time.Duration(0))

// Validator is an optional interface configuration structs may implement
// for cross-field validation. When the struct passed to [Loader.Load]
// implements Validator, its Validate method runs after tag-based required
// checks succeed.
type Validator interface {
	Validate() error
}

// Loader resolves configuration with the layered strategy described in the
// package documentation. Create one with [New], customize it with
// [Loader.WithEnvPrefix] and [Loader.WithFile], then call [Loader.Load].
//
// Loader is not safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
}

// New creates a Loader that reads from environment variables only.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets a prefix joined with "_" to every env tag name, so a
// field tagged `env:"AUDIENCE"` with prefix "QF" reads QF_AUDIENCE. The
// prefix is uppercased; an empty prefix disables prefixing.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path of an optional YAML configuration file (.yaml or
// .yml). A missing file is not an error; any other extension is. The path
// must not contain directory traversal sequences.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, by
// applying envDefault tags, then file values, then environment variables.
// Afterwards, fields tagged `required:"true"` must be non-zero and a
// [Validator] implementation (if any) is invoked.
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return qferr.New(qferr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return qferr.New(qferr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}

	if err := checkRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isStructured := qferr.AsError(err); isStructured {
				return err
			}
			return qferr.Wrap(err, qferr.CodeValidation, "config: validation failed")
		}
	}

	return nil
}

// MustLoad creates a zero value of T, loads configuration into it, and
// returns it, panicking on failure. Intended for application startup where
// an unloadable configuration should stop the process.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads and unmarshals the YAML file. Missing files are ignored.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return qferr.New(qferr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return qferr.Wrapf(err, qferr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return qferr.Wrapf(err, qferr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	default:
		return qferr.Newf(qferr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml or .yml)", ext)
	}

	return nil
}

// applyDefaults walks the struct and sets zero-valued fields to their
// envDefault tag values.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}

		if err := setField(field, tag); err != nil {
			return qferr.Wrapf(err, qferr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}

	return nil
}

// applyEnv walks the struct and sets fields from environment variables named
// by the "env" tag. For nested structs, the parent's env tag joins the
// accumulated prefix with "_".
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nested := prefix
			if envTag != "" {
				if nested != "" {
					nested = nested + "_" + envTag
				} else {
					nested = envTag
				}
			}
			if err := applyEnv(field, nested); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}

		key := envTag
		if prefix != "" {
			key = prefix + "_" + envTag
		}

		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}

		if err := setField(field, val); err != nil {
			return qferr.Wrapf(err, qferr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}

	return nil
}

// checkRequired verifies that every field tagged `required:"true"` holds a
// non-zero value. The path parameter accumulates the dotted field path for
// error messages.
func checkRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := checkRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return qferr.Newf(qferr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}

// setField parses value and assigns it according to the field's kind.
// Supported: string (and named string types), bool, signed integers,
// time.Duration, and []string (comma-separated).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// Build with the field's own slice type so named slice types work.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}
