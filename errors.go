// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import "errors"

// Sentinel errors returned by the engine (spec §7). Allocate never lets
// any other error type escape; everything is either one of these,
// wrapped with fmt.Errorf("...: %w", err), or a descriptive
// input-invalid error built by the validate.go functions.
var (
	// ErrNoServersAvailable names the case where the pipeline emptied the
	// candidate set and no "or" alternative produced a non-empty result.
	// Allocate does not return it: it reports that case as a nil server
	// with a nil error.
	ErrNoServersAvailable = errors.New("placement: no servers available")

	// ErrStepSkipped is returned by an Algorithm's Run to indicate it
	// chose not to act this call (e.g. a disabled optional filter); the
	// interpreter treats the input as passing through unchanged.
	ErrStepSkipped = errors.New("placement: step skipped")

	// ErrInputInvalid wraps the first validation failure found among the
	// VM/image/package/defaults/ticket inputs (spec §4.1, §7).
	ErrInputInvalid = errors.New("placement: input invalid")

	// ErrUnknownAlgorithm is returned when a pipeline description names
	// a stage that was never registered.
	ErrUnknownAlgorithm = errors.New("placement: unknown algorithm")

	// ErrEmptyDescription is returned by ParseDescription for an empty
	// pipe/or node.
	ErrEmptyDescription = errors.New("placement: empty pipeline description")
)
