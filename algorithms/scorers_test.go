// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"testing"
	"time"

	placement "github.com/sapcc/node-placement"
)

func runScorer(t *testing.T, alg placement.Algorithm, servers []*placement.Server, c placement.Constraints) map[string]float64 {
	t.Helper()
	res, err := alg.Run(placement.NopLogger(), placement.NewState(), servers, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return res.ScoreDelta
}

func TestScoreCurrentPlatform_RewardsNewer(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "old", SysInfo: placement.SysInfo{LiveImage: "20200101T000000Z"}},
		{UUID: "new", SysInfo: placement.SysInfo{LiveImage: "20220101T000000Z"}},
	}
	delta := runScorer(t, &ScoreCurrentPlatform{}, servers, placement.Constraints{Defaults: placement.Defaults{WeightCurrentPlatform: 1}})
	if delta["new"] <= delta["old"] {
		t.Errorf("expected newer live image to score higher, got old=%v new=%v", delta["old"], delta["new"])
	}
}

func TestScoreCurrentPlatform_MissingRanksLast(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "missing"},
		{UUID: "has", SysInfo: placement.SysInfo{LiveImage: "20200101T000000Z"}},
	}
	delta := runScorer(t, &ScoreCurrentPlatform{}, servers, placement.Constraints{Defaults: placement.Defaults{WeightCurrentPlatform: 1}})
	if delta["missing"] >= delta["has"] {
		t.Errorf("expected missing live image to rank last, got missing=%v has=%v", delta["missing"], delta["has"])
	}
}

func TestScoreNextReboot_RewardsFartherInFuture(t *testing.T) {
	now := time.Now()
	servers := []*placement.Server{
		{UUID: "soon", SysInfo: placement.SysInfo{NextRebootTime: now.Add(time.Hour)}},
		{UUID: "later", SysInfo: placement.SysInfo{NextRebootTime: now.Add(24 * time.Hour)}},
	}
	delta := runScorer(t, &ScoreNextReboot{}, servers, placement.Constraints{Defaults: placement.Defaults{WeightNextReboot: 1}})
	if delta["later"] <= delta["soon"] {
		t.Errorf("expected farther-out reboot to score higher, got soon=%v later=%v", delta["soon"], delta["later"])
	}
}

func TestScoreNextReboot_NoScheduledRebootRanksHighest(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "scheduled", SysInfo: placement.SysInfo{NextRebootTime: time.Now().Add(time.Hour)}},
		{UUID: "none"},
	}
	delta := runScorer(t, &ScoreNextReboot{}, servers, placement.Constraints{Defaults: placement.Defaults{WeightNextReboot: 1}})
	if delta["none"] <= delta["scheduled"] {
		t.Errorf("expected a server with no scheduled reboot to rank highest, got scheduled=%v none=%v", delta["scheduled"], delta["none"])
	}
}

func TestScoreNumOwnerZones_RewardsFewerOwnerVMs(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "busy", VMs: map[string]placement.HostedVM{
			"v1": {OwnerUUID: "owner-a"}, "v2": {OwnerUUID: "owner-a"},
		}},
		{UUID: "idle", VMs: map[string]placement.HostedVM{
			"v1": {OwnerUUID: "owner-b"},
		}},
	}
	c := placement.Constraints{Defaults: placement.Defaults{WeightNumOwnerZones: 1}, VM: placement.VM{OwnerUUID: "owner-a"}}
	delta := runScorer(t, &ScoreNumOwnerZones{}, servers, c)
	if delta["idle"] <= delta["busy"] {
		t.Errorf("expected fewer owner VMs to score higher, got busy=%v idle=%v", delta["busy"], delta["idle"])
	}
}

func TestScoreUnreservedRAM_RewardsMore(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "low", Derived: placement.ServerDerived{UnreservedRAM: 10}},
		{UUID: "high", Derived: placement.ServerDerived{UnreservedRAM: 1000}},
	}
	delta := runScorer(t, &ScoreUnreservedRAM{}, servers, placement.Constraints{Defaults: placement.Defaults{WeightUnreservedRAM: 1}})
	if delta["high"] <= delta["low"] {
		t.Errorf("expected more unreserved RAM to score higher, got low=%v high=%v", delta["low"], delta["high"])
	}
}

func TestScoreUnreservedDisk_RewardsMore(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "low", Derived: placement.ServerDerived{UnreservedDisk: 10}},
		{UUID: "high", Derived: placement.ServerDerived{UnreservedDisk: 1000}},
	}
	delta := runScorer(t, &ScoreUnreservedDisk{}, servers, placement.Constraints{Defaults: placement.Defaults{WeightUnreservedDisk: 1}})
	if delta["high"] <= delta["low"] {
		t.Errorf("expected more unreserved disk to score higher, got low=%v high=%v", delta["low"], delta["high"])
	}
}

func TestScoreUniformRandom_DeterministicUnderFixedSeed(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}, {UUID: "b"}}
	c := placement.Constraints{Defaults: placement.Defaults{WeightUniformRandom: 1}}

	a1 := &ScoreUniformRandom{}
	if err := a1.Init(placement.NewRawOptsJSON([]byte(`{"seed": 42}`))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delta1 := runScorer(t, a1, servers, c)

	a2 := &ScoreUniformRandom{}
	if err := a2.Init(placement.NewRawOptsJSON([]byte(`{"seed": 42}`))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	delta2 := runScorer(t, a2, servers, c)

	if delta1["a"] != delta2["a"] || delta1["b"] != delta2["b"] {
		t.Errorf("expected the same seed to produce identical scores across runs, got %v vs %v", delta1, delta2)
	}
}

func TestScoreUniformRandom_DifferentSeedsDiffer(t *testing.T) {
	servers := []*placement.Server{{UUID: "a"}}
	c := placement.Constraints{Defaults: placement.Defaults{WeightUniformRandom: 1}}

	a1 := &ScoreUniformRandom{}
	_ = a1.Init(placement.NewRawOptsJSON([]byte(`{"seed": 1}`)))
	delta1 := runScorer(t, a1, servers, c)

	a2 := &ScoreUniformRandom{}
	_ = a2.Init(placement.NewRawOptsJSON([]byte(`{"seed": 2}`)))
	delta2 := runScorer(t, a2, servers, c)

	if delta1["a"] == delta2["a"] {
		t.Error("expected different seeds to produce different scores (hash collision is possible but astronomically unlikely here)")
	}
}

func TestScoreUniformRandom_ZeroSeedIsResolvedAtInit(t *testing.T) {
	a := &ScoreUniformRandom{}
	if err := a.Init(placement.EmptyRawOpts()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.resolvedSeed == 0 {
		t.Error("expected a zero configured seed to be resolved to a nonzero wall-clock-derived seed")
	}
}

func TestScoreUniformRandom_ContributionWithinWeightBound(t *testing.T) {
	a := &ScoreUniformRandom{}
	_ = a.Init(placement.NewRawOptsJSON([]byte(`{"seed": 7}`)))
	c := placement.Constraints{Defaults: placement.Defaults{WeightUniformRandom: 2}}
	delta := runScorer(t, a, []*placement.Server{{UUID: "a"}}, c)
	if delta["a"] < 0 || delta["a"] > 2 {
		t.Errorf("expected contribution within [0, weight], got %v", delta["a"])
	}
}
