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

// Package config contains the configuration for the federating query
// processor. The configuration is loaded from a JSON, TOML, or YAML file.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Federation describes the configuration for the federating processor.
type Federation struct {
	// The remote SPARQL endpoint URLs that leaf patterns are federated to.
	Endpoints []string `json:"endpoints" toml:"endpoints" yaml:"endpoints"`

	// Limits on the rewrite pipeline.
	Rewrite Rewrite `json:"rewrite" toml:"rewrite" yaml:"rewrite"`

	// How endpoint availability is decided.
	Oracle Oracle `json:"oracle" toml:"oracle" yaml:"oracle"`

	// Limits on remote service calls during execution.
	Exec Exec `json:"exec" toml:"exec" yaml:"exec"`

	// If non-nil, the configuration for distributed tracing (OpenTracing). If
	// nil, traces aren't collected.
	Tracing *Tracing `json:"tracing,omitempty" toml:"tracing,omitempty" yaml:"tracing,omitempty"`

	// If set, the host:port to serve Prometheus metrics on.
	MetricsAddress string `json:"metricsAddress,omitempty" toml:"metricsAddress,omitempty" yaml:"metricsAddress,omitempty"`
}

// Rewrite bounds the fixpoint steps of the federation planner.
type Rewrite struct {
	// Maximum number of pushdown passes. If 0, a default is used.
	MaxPushdownPasses int `json:"maxPushdownPasses,omitempty" toml:"maxPushdownPasses,omitempty" yaml:"maxPushdownPasses,omitempty"`
	// Maximum number of merge passes. If 0, a default is used.
	MaxMergePasses int `json:"maxMergePasses,omitempty" toml:"maxMergePasses,omitempty" yaml:"maxMergePasses,omitempty"`
	// If true, run exactly 1 pushdown pass and 4 merge passes rather than
	// iterating until the plan stops changing.
	FixedPasses bool `json:"fixedPasses,omitempty" toml:"fixedPasses,omitempty" yaml:"fixedPasses,omitempty"`
}

// Oracle types.
const (
	// OracleAsk probes endpoints with ASK queries and caches the answers.
	OracleAsk = "ask"
	// OracleNone considers every endpoint able to answer every pattern.
	OracleNone = "none"
)

// Oracle configures the availability oracle.
type Oracle struct {
	// Either "ask" (the default) or "none".
	Type string `json:"type,omitempty" toml:"type,omitempty" yaml:"type,omitempty"`
	// How long probe answers are cached. If 0, they're kept forever.
	CacheTTL Duration `json:"cacheTTL,omitempty" toml:"cacheTTL,omitempty" yaml:"cacheTTL,omitempty"`
}

// Exec bounds the remote requests made while executing a federated plan.
type Exec struct {
	// Maximum service requests in flight at once. If 0, a default is used.
	MaxConcurrentRequests int `json:"maxConcurrentRequests,omitempty" toml:"maxConcurrentRequests,omitempty" yaml:"maxConcurrentRequests,omitempty"`
	// Maximum service requests in flight to a single endpoint. If 0, a
	// default is used.
	MaxConcurrentRequestsPerEndpoint int `json:"maxConcurrentRequestsPerEndpoint,omitempty" toml:"maxConcurrentRequestsPerEndpoint,omitempty" yaml:"maxConcurrentRequestsPerEndpoint,omitempty"`
	// If set, each remote request is abandoned after this long.
	RequestTimeout Duration `json:"requestTimeout,omitempty" toml:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
}

// Tracing contains configuration related to distributed execution tracing.
type Tracing struct {
	// The host:port addresses of Jaeger collectors accepting jaeger.thrift
	// over HTTP. Traces are sent to one of them at a time.
	Collectors []string `json:"collectors" toml:"collectors" yaml:"collectors"`
}

// Duration is a time.Duration that's written as a string like "1m30s" in
// config files.
type Duration time.Duration

// String returns the duration formatted like "1m30s".
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It's used by the JSON and
// TOML decoders.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %v", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Validate returns an error describing the first problem found with the
// configuration, or nil if it's usable.
func (cfg *Federation) Validate() error {
	for _, endpoint := range cfg.Endpoints {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint %q: %v", endpoint, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid endpoint %q: scheme must be http or https", endpoint)
		}
	}
	switch cfg.Oracle.Type {
	case "", OracleAsk, OracleNone:
	default:
		return fmt.Errorf("invalid oracle type %q: must be %q or %q",
			cfg.Oracle.Type, OracleAsk, OracleNone)
	}
	if cfg.Rewrite.MaxPushdownPasses < 0 || cfg.Rewrite.MaxMergePasses < 0 {
		return fmt.Errorf("rewrite pass limits can't be negative")
	}
	if cfg.Exec.MaxConcurrentRequests < 0 || cfg.Exec.MaxConcurrentRequestsPerEndpoint < 0 {
		return fmt.Errorf("exec request limits can't be negative")
	}
	if cfg.Tracing != nil && len(cfg.Tracing.Collectors) == 0 {
		return fmt.Errorf("tracing requires at least one collector")
	}
	return nil
}
