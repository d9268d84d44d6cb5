/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golobby/config/v3"
	"github.com/golobby/config/v3/pkg/feeder"
)

const settingsBaseName = "env"

// SettingsValidator lets a settings struct reject bad values after loading.
type SettingsValidator interface {
	Validate() error
}

// SettingsOptions controls where settings are loaded from.
type SettingsOptions struct {
	Dir         string // directory containing the env TOML files, default "."
	Environment string // default: CurrentEnvironment()
}

// CurrentEnvironment returns the APP_ENV environment variable, defaulting to
// "development".
func CurrentEnvironment() string {
	return EnvDefaultString("APP_ENV", "development")
}

// LoadSettings populates target from layered TOML files in dir using the
// current environment. See Load.
func LoadSettings(dir string, target interface{}) error {
	return Load(target, SettingsOptions{Dir: dir})
}

// Load populates target from layered TOML files: env.toml, env.local.toml,
// env.<environment>.toml, and env.<environment>.local.toml, in that order,
// with later files overriding earlier ones. Missing files are skipped.
// Process environment variables bound through `env` struct tags override
// everything. After feeding, `default` tags fill zero fields, `required`
// tags reject missing values, and Validate runs when target implements
// SettingsValidator.
func Load(target interface{}, opts SettingsOptions) error {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	environment := opts.Environment
	if environment == "" {
		environment = CurrentEnvironment()
	}

	c := config.New()
	for _, name := range settingsFiles(environment) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		c.AddFeeder(feeder.Toml{Path: path})
	}
	c.AddFeeder(feeder.Env{})

	if err := c.AddStruct(target).Feed(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if err := applySettingsDefaults(target); err != nil {
		return err
	}
	if err := checkSettingsRequired(target); err != nil {
		return err
	}

	if v, ok := target.(SettingsValidator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
	}
	return nil
}

// applySettingsDefaults fills zero-valued fields from their `default` tag.
// Nested structs are walked; defaults never overwrite fed values.
func applySettingsDefaults(target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("settings target must be a non-nil pointer")
	}
	return walkSettings(rv.Elem(), "", func(field reflect.StructField, value reflect.Value, path string) error {
		def := field.Tag.Get("default")
		if def == "" || !value.CanSet() || !value.IsZero() {
			return nil
		}
		if err := setSettingValue(value, def); err != nil {
			return fmt.Errorf("invalid default for %s: %w", path, err)
		}
		return nil
	})
}

// checkSettingsRequired rejects zero-valued fields tagged `required:"true"`.
func checkSettingsRequired(target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("settings target must be a non-nil pointer")
	}
	return walkSettings(rv.Elem(), "", func(field reflect.StructField, value reflect.Value, path string) error {
		if field.Tag.Get("required") == "true" && value.IsZero() {
			return fmt.Errorf("missing required setting %s", path)
		}
		return nil
	})
}

func walkSettings(v reflect.Value, path string, visit func(reflect.StructField, reflect.Value, string) error) error {
	if v.Kind() != reflect.Struct {
		return nil
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		value := v.Field(i)
		name := field.Name
		if path != "" {
			name = path + "." + name
		}
		if err := visit(field, value, name); err != nil {
			return err
		}
		switch {
		case value.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}):
			if err := walkSettings(value, name, visit); err != nil {
				return err
			}
		case value.Kind() == reflect.Ptr && !value.IsNil() && value.Elem().Kind() == reflect.Struct:
			if err := walkSettings(value.Elem(), name, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

func setSettingValue(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			v.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return fmt.Errorf("unsupported setting kind %s", v.Kind())
	}
	return nil
}

func settingsFiles(environment string) []string {
	files := []string{
		settingsBaseName + ".toml",
		settingsBaseName + ".local.toml",
	}
	if environment != "" {
		files = append(files,
			fmt.Sprintf("%s.%s.toml", settingsBaseName, environment),
			fmt.Sprintf("%s.%s.local.toml", settingsBaseName, environment),
		)
	}
	return files
}

// LoadSettingsSection decodes a single top-level TOML section into target,
// so components can pull their own configuration out of a shared file
// without declaring the full document structure.
func LoadSettingsSection(path, section string, target interface{}) error {
	var raw map[string]toml.Primitive
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	prim, ok := raw[section]
	if !ok {
		return fmt.Errorf("section %q not found in %s", section, path)
	}
	if err := meta.PrimitiveDecode(prim, target); err != nil {
		return fmt.Errorf("failed to decode section %q: %w", section, err)
	}
	return nil
}
