// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"testing"
	"time"

	placement "github.com/sapcc/node-placement"
)

func TestHardFilterRecentServers_NoStateIsNoop(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}}
	out := runFilter(t, &HardFilterRecentServers{}, servers, placement.Constraints{})
	if !containsUUID(out, "a") {
		t.Errorf("expected no-op when no RecentServers is installed in state, got %v", uuids(out))
	}
}

func TestHardFilterRecentServers_DropsRecentlyUsed(t *testing.T) {
	recent := placement.NewRecentServers(0)
	recent.Record("used", time.Now())
	state := placement.NewState()
	state.Set(placement.StateKeyRecentServers, recent)

	servers := []*placement.Server{{UUID: "used"}, {UUID: "fresh"}}
	res, err := (&HardFilterRecentServers{}).Run(placement.NopLogger(), state, servers, placement.Constraints{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsUUID(res.Servers, "fresh") || containsUUID(res.Servers, "used") {
		t.Errorf("got %v", uuids(res.Servers))
	}
}

func TestHardFilterRecentServers_PostRecordsChosenServer(t *testing.T) {
	recent := placement.NewRecentServers(0)
	state := placement.NewState()
	state.Set(placement.StateKeyRecentServers, recent)
	now := time.Now()
	state.Set(placement.StateKeyNow, now)

	chosen := &placement.Server{UUID: "picked"}
	(&HardFilterRecentServers{}).Post(placement.NopLogger(), state, chosen)

	snap := recent.Snapshot()
	if _, ok := snap["picked"]; !ok {
		t.Error("expected Post to record the chosen server into RecentServers")
	}
}

func TestHardFilterRecentServers_PostNoopWithoutState(t *testing.T) {
	state := placement.NewState()
	chosen := &placement.Server{UUID: "picked"}
	// Must not panic when no RecentServers is installed.
	(&HardFilterRecentServers{}).Post(placement.NopLogger(), state, chosen)
}
