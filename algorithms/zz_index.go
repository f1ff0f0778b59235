// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

// Package algorithms holds the built-in Algorithm implementations of
// the placement engine's hard filters, soft filters, and scorers. Each
// file registers its stages into Index from an init(), mirroring the
// teacher's internal/scheduling/nova/plugins/filters package layout
// (zz_index.go + one file per stage, each self-registering).
package algorithms

import placement "github.com/sapcc/node-placement"

// Index maps a built-in algorithm's name to a factory producing a
// fresh instance. Grounded on the teacher's
// filters.Index map[string]func() NovaFilter.
var Index = map[string]func() placement.Algorithm{}

// RegisterAll registers every built-in algorithm into r. Callers that
// want only a subset may instead call r.Register selectively using
// entries of Index.
func RegisterAll(r *placement.Registry) {
	for name, factory := range Index {
		r.Register(name, factory)
	}
}
