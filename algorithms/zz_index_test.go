// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"testing"

	placement "github.com/sapcc/node-placement"
)

var wantRegistered = []string{
	"hard-filter-setup",
	"hard-filter-running",
	"hard-filter-reserved",
	"hard-filter-reservoir",
	"hard-filter-headnode",
	"hard-filter-virtual-servers",
	"hard-filter-invalid-servers",
	"hard-filter-min-ram",
	"hard-filter-min-cpu",
	"hard-filter-min-disk",
	"hard-filter-min-free-disk",
	"hard-filter-overprovision-ratios",
	"hard-filter-platform-versions",
	"hard-filter-feature-min-platform",
	"hard-filter-traits",
	"hard-filter-vlans",
	"hard-filter-vm-count",
	"hard-filter-large-servers",
	"hard-filter-force-failure",
	"hard-filter-volumes-from",
	"hard-filter-locality-hints",
	"hard-filter-recent-servers",
	"soft-filter-locality-hints",
	"soft-filter-recent-servers",
	"score-current-platform",
	"score-next-reboot",
	"score-num-owner-zones",
	"score-unreserved-ram",
	"score-unreserved-disk",
	"score-uniform-random",
}

func TestIndex_HasEveryBuiltinAlgorithm(t *testing.T) {
	if len(Index) != len(wantRegistered) {
		t.Errorf("got %d registered algorithms, want %d", len(Index), len(wantRegistered))
	}
	for _, name := range wantRegistered {
		factory, ok := Index[name]
		if !ok {
			t.Errorf("missing %q from Index", name)
			continue
		}
		if alg := factory(); alg == nil || alg.Name() != name {
			t.Errorf("factory for %q produced %+v", name, alg)
		}
	}
}

func TestRegisterAll_WiresEveryNameIntoRegistry(t *testing.T) {
	r := placement.NewRegistry()
	RegisterAll(r)
	names := r.Names()
	if len(names) != len(wantRegistered) {
		t.Fatalf("got %d names in registry, want %d: %v", len(names), len(wantRegistered), names)
	}
	for _, name := range wantRegistered {
		if _, err := r.New(name); err != nil {
			t.Errorf("registry.New(%q) failed: %v", name, err)
		}
	}
}
