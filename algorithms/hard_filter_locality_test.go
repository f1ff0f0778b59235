// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"testing"

	placement "github.com/sapcc/node-placement"
)

func TestHardFilterLocalityHints_NoHintsIsNoop(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "b"}}
	out := runFilter(t, &HardFilterLocalityHints{}, servers, placement.Constraints{})
	if len(out) != 2 {
		t.Errorf("expected no-op with no locality hints, got %v", uuids(out))
	}
}

func TestHardFilterLocalityHints_DropsFar(t *testing.T) {
	servers := []*placement.Server{{UUID: "near"}, {UUID: "far"}}
	c := placement.Constraints{HardFarServers: map[string]struct{}{"far": {}}}
	out := runFilter(t, &HardFilterLocalityHints{}, servers, c)
	if !containsUUID(out, "near") || containsUUID(out, "far") {
		t.Errorf("got %v", uuids(out))
	}
}

func TestHardFilterLocalityHints_RequiresNearSurvivor(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "near"}}
	c := placement.Constraints{HardNearServers: map[string]struct{}{"near": {}}}
	out := runFilter(t, &HardFilterLocalityHints{}, servers, c)
	if !containsUUID(out, "a") || !containsUUID(out, "near") {
		t.Errorf("expected both servers to survive since the near server is present, got %v", uuids(out))
	}
}

func TestHardFilterLocalityHints_EmptiesWhenNoNearSurvives(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "b"}}
	c := placement.Constraints{HardNearServers: map[string]struct{}{"nowhere-to-be-found": {}}}
	out := runFilter(t, &HardFilterLocalityHints{}, servers, c)
	if len(out) != 0 {
		t.Errorf("expected candidate set emptied when the required-near host never appears, got %v", uuids(out))
	}
}

func TestHardFilterLocalityHints_FarTakesPrecedenceOverNear(t *testing.T) {
	// The near server is also named far: it is removed, and since it was
	// the only near candidate, the whole set empties.
	servers := []*placement.Server{{UUID: "both"}, {UUID: "other"}}
	c := placement.Constraints{
		HardNearServers: map[string]struct{}{"both": {}},
		HardFarServers:  map[string]struct{}{"both": {}},
	}
	out := runFilter(t, &HardFilterLocalityHints{}, servers, c)
	if len(out) != 0 {
		t.Errorf("expected empty result, got %v", uuids(out))
	}
}
