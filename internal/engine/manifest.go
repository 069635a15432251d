package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/woxQAQ/hanzi-ime/internal/wasm"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the bundle metadata file name.
const ManifestFile = "manifest.yaml"

// DialectSimplifiedChinese is the only dialect the engine ABI translates to.
const DialectSimplifiedChinese = "zh-Hans"

// Manifest represents the bundle manifest.yaml structure.
type Manifest struct {
	Name    string     `yaml:"name" validate:"required"`
	Version string     `yaml:"version" validate:"required"`
	Dialect string     `yaml:"dialect" validate:"required,oneof=zh-Hans"`
	Wasm    WasmConfig `yaml:"wasm"`
	ABI     wasm.ABI   `yaml:"abi"`
	Author  string     `yaml:"author"`
	License string     `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file" validate:"required"`
}

// manifestValidator reports fields by their YAML names.
var manifestValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields and that the Wasm file exists.
func (m *Manifest) Validate() error {
	if err := manifestValidator.Struct(m); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
			return &ManifestValidationError{Path: m.Path(), Message: err.Error()}
		}
		fe := fieldErrs[0]
		field := strings.TrimPrefix(fe.Namespace(), "Manifest.")
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   field,
			Message: validationMessage(field, fe),
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

func validationMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("unsupported %s: %v (must be one of: %s)", field, fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s failed '%s' check", field, fe.Tag())
	}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
