// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// RawOpts is an options blob that hasn't been unmarshalled into a
// concrete struct yet, modeled byte-for-byte on the teacher's
// internal/conf.RawOpts: a postponed-unmarshal closure rather than raw
// bytes, so it can wrap either a yaml.v3 decode node or a json
// payload and defer the type decision to the caller of Unmarshal.
type RawOpts struct {
	unmarshal func(any) error
}

// NewRawOptsYAML builds a RawOpts from a YAML document (the teacher's
// own config-file format).
func NewRawOptsYAML(raw string) RawOpts {
	return RawOpts{unmarshal: func(v any) error {
		return yaml.Unmarshal([]byte(raw), v)
	}}
}

// NewRawOptsJSON builds a RawOpts from a JSON document — the engine is
// invoked as a library, so a caller whose own request body is JSON can
// hand per-stage options through without a YAML round trip.
func NewRawOptsJSON(raw []byte) RawOpts {
	return RawOpts{unmarshal: func(v any) error {
		return json.Unmarshal(raw, v)
	}}
}

// EmptyRawOpts returns a RawOpts that unmarshals into the zero value,
// for algorithms with no stage-specific configuration.
func EmptyRawOpts() RawOpts {
	return RawOpts{unmarshal: func(any) error { return nil }}
}

// Unmarshal calls the postponed unmarshal function.
func (o RawOpts) Unmarshal(v any) error { return o.unmarshal(v) }

// UnmarshalYAML lets RawOpts itself be embedded in a larger yaml
// document and still postpone decoding its own subtree, exactly as the
// teacher's RawOpts does.
func (o *RawOpts) UnmarshalYAML(node *yaml.Node) error {
	o.unmarshal = func(v any) error { return node.Decode(v) }
	return nil
}

// Options is a mixin adding "load options from a RawOpts" to any type
// that embeds it, mirroring the teacher's YamlOpts[Options] mixin.
type Options[T any] struct {
	Value T
}

// Load unmarshals opts into the mixin's Value field.
func (o *Options[T]) Load(opts RawOpts) error {
	var v T
	if err := opts.Unmarshal(&v); err != nil {
		return err
	}
	o.Value = v
	return nil
}
