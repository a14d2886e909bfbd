// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kasei/kineo-federation/util/errors"
	yaml "gopkg.in/yaml.v2"
)

// Load parses the configuration from the given file. The format is chosen by
// the file's extension: ".json", ".toml", ".yaml", or ".yml". Upon success, it
// returns a non-nil, validated configuration. Otherwise, it returns an error,
// which already includes the filename.
func Load(filename string) (*Federation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := bufio.NewReader(f)
	var cfg *Federation
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		cfg, err = loadJSON(filename, reader)
	case ".toml":
		cfg, err = loadTOML(filename, reader)
	case ".yaml", ".yml":
		cfg, err = loadYAML(filename, reader)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q for %v", ext, filename)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %v: %v", filename, err)
	}
	return cfg, nil
}

func loadJSON(filename string, r io.Reader) (*Federation, error) {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	cfg := new(Federation)
	// The **Federation double-pointer is needed to detect an input of "null".
	err := decoder.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding JSON value in %v: %v", filename, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("loading %v resulted in nil config", filename)
	}
	if decoder.More() {
		return nil, fmt.Errorf("found unexpected data after config in %v", filename)
	}
	return cfg, nil
}

func loadTOML(filename string, r io.Reader) (*Federation, error) {
	cfg := new(Federation)
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding TOML value in %v: %v", filename, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("error decoding TOML value in %v: unknown keys %v",
			filename, undecoded)
	}
	return cfg, nil
}

func loadYAML(filename string, r io.Reader) (*Federation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %v: %v", filename, err)
	}
	var cfg *Federation
	err = yaml.UnmarshalStrict(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("error decoding YAML value in %v: %v", filename, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("loading %v resulted in nil config", filename)
	}
	return cfg, nil
}

// Write marshals the configuration as JSON to the given file. It truncates the
// file if it already exists. It returns nil upon success. Otherwise, it returns
// an error, which already includes the filename.
func Write(cfg *Federation, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	writer := bufio.NewWriter(f)
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "\t")
	err = errors.Any(
		encoder.Encode(cfg),
		writer.Flush(),
		f.Close(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %v: %v", filename, err)
	}
	return nil
}
