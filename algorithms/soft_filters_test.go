// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"testing"
	"time"

	placement "github.com/sapcc/node-placement"
)

func TestSoftFilterLocalityHints_NoHintsIsNoop(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "b"}}
	out := runFilter(t, &SoftFilterLocalityHints{}, servers, placement.Constraints{})
	if len(out) != 2 {
		t.Errorf("expected no-op with no soft hints, got %v", uuids(out))
	}
}

func TestSoftFilterLocalityHints_DropsFar(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "far"}}
	c := placement.Constraints{SoftFarServers: map[string]struct{}{"far": {}}}
	out := runFilter(t, &SoftFilterLocalityHints{}, servers, c)
	if !containsUUID(out, "a") || containsUUID(out, "far") {
		t.Errorf("got %v", uuids(out))
	}
}

func TestSoftFilterLocalityHints_FallsBackWhenFarWouldEmpty(t *testing.T) {
	servers := []*placement.Server{{UUID: "only-far"}}
	c := placement.Constraints{SoftFarServers: map[string]struct{}{"only-far": {}}}
	out := runFilter(t, &SoftFilterLocalityHints{}, servers, c)
	if !containsUUID(out, "only-far") {
		t.Errorf("expected fallback to the unmodified input when avoiding far would empty the set, got %v", uuids(out))
	}
}

func TestSoftFilterLocalityHints_PrefersNear(t *testing.T) {
	servers := []*placement.Server{{UUID: "near"}, {UUID: "other"}}
	c := placement.Constraints{SoftNearServers: map[string]struct{}{"near": {}}}
	out := runFilter(t, &SoftFilterLocalityHints{}, servers, c)
	if len(out) != 1 || out[0].UUID != "near" {
		t.Errorf("expected only the near-preferred server, got %v", uuids(out))
	}
}

func TestSoftFilterLocalityHints_FallsBackWhenNoNearSurvives(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "b"}}
	c := placement.Constraints{SoftNearServers: map[string]struct{}{"nowhere": {}}}
	out := runFilter(t, &SoftFilterLocalityHints{}, servers, c)
	if len(out) != 2 {
		t.Errorf("expected fallback to the full set when no near server survives, got %v", uuids(out))
	}
}

func TestSoftFilterRecentServers_NoStateIsNoop(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}}
	out := runFilter(t, &SoftFilterRecentServers{}, servers, placement.Constraints{})
	if !containsUUID(out, "a") {
		t.Errorf("expected no-op with no RecentServers state, got %v", uuids(out))
	}
}

func TestSoftFilterRecentServers_DropsMostRecentFirst(t *testing.T) {
	now := time.Now()
	recent := placement.NewRecentServers(0)
	recent.Record("oldest", now.Add(-3*time.Second))
	recent.Record("newest", now.Add(-1*time.Second))
	state := placement.NewState()
	state.Set(placement.StateKeyRecentServers, recent)

	// 4 servers, maxDrop = ceil(0.25*4) = 1: only the most recent used entry drops.
	servers := []*placement.Server{{UUID: "oldest"}, {UUID: "newest"}, {UUID: "c"}, {UUID: "d"}}
	res, err := (&SoftFilterRecentServers{}).Run(placement.NopLogger(), state, servers, placement.Constraints{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if containsUUID(res.Servers, "newest") {
		t.Errorf("expected the most recently used server dropped first, got %v", uuids(res.Servers))
	}
	if !containsUUID(res.Servers, "oldest") {
		t.Errorf("expected the older used entry to survive within the drop budget, got %v", uuids(res.Servers))
	}
}

func TestSoftFilterRecentServers_FallsBackWhenAllUsedAndWouldEmpty(t *testing.T) {
	recent := placement.NewRecentServers(0)
	recent.Record("a", time.Now())
	state := placement.NewState()
	state.Set(placement.StateKeyRecentServers, recent)

	servers := []*placement.Server{{UUID: "a"}}
	res, err := (&SoftFilterRecentServers{}).Run(placement.NopLogger(), state, servers, placement.Constraints{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsUUID(res.Servers, "a") {
		t.Errorf("expected fallback to the unmodified input rather than emptying the set, got %v", uuids(res.Servers))
	}
}

func TestSoftFilterRecentServers_PostRecordsChosen(t *testing.T) {
	recent := placement.NewRecentServers(0)
	state := placement.NewState()
	state.Set(placement.StateKeyRecentServers, recent)
	state.Set(placement.StateKeyNow, time.Now())

	(&SoftFilterRecentServers{}).Post(placement.NopLogger(), state, &placement.Server{UUID: "picked"})
	if _, ok := recent.Snapshot()["picked"]; !ok {
		t.Error("expected Post to record the chosen server")
	}
}
