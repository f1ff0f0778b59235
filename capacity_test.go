// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import "testing"

func TestBuildCapacityReport(t *testing.T) {
	res := &Result{
		CapacityMode: true,
		Capacity: map[string]CapacityBudget{
			"s1": {RAM: 100, CPU: 50, Disk: 1000},
			"s2": {RAM: 0, CPU: 0, Disk: 0},
		},
		CapacityReasons: map[string]string{
			"s2": "hard-filter-min-ram: insufficient RAM",
		},
	}

	report := BuildCapacityReport(res)

	if !report["s1"].WouldPass || report["s1"].Reason != "" {
		t.Errorf("expected s1 to pass with no reason, got %+v", report["s1"])
	}
	if report["s1"].RAM != 100 || report["s1"].CPU != 50 || report["s1"].Disk != 1000 {
		t.Errorf("expected s1 budget to round-trip, got %+v", report["s1"])
	}
	if report["s2"].WouldPass {
		t.Errorf("expected s2 to fail, got %+v", report["s2"])
	}
	if report["s2"].Reason == "" {
		t.Error("expected s2 to carry its failure reason")
	}
}
