// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	placement "github.com/sapcc/node-placement"
)

// HardFilterVMCount drops servers already hosting filter_vm_limit or
// more VMs (spec §4.4, default 224). A limit of 0 means "no limit".
type HardFilterVMCount struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterVMCount) Name() string         { return "hard-filter-vm-count" }
func (*HardFilterVMCount) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterVMCount) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	limit := c.Defaults.FilterVMLimit
	if limit <= 0 {
		return &placement.StepResult{Servers: servers}, nil
	}
	return reject(servers, func(s *placement.Server) (bool, string) {
		if len(s.VMs) >= limit {
			return false, fmt.Sprintf("server hosts %d VMs, at or above the limit of %d", len(s.VMs), limit)
		}
		return true, ""
	}), nil
}

// HardFilterLargeServers removes the largest 15% of survivors by
// unreserved RAM, preserving them for large allocations (spec §4.4,
// §8 scenario S5). A no-op with fewer than 2 survivors. Gated by
// Defaults.FilterLargeServers.
type HardFilterLargeServers struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterLargeServers) Name() string         { return "hard-filter-large-servers" }
func (*HardFilterLargeServers) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterLargeServers) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if !c.Defaults.FilterLargeServers || len(servers) < 2 {
		return &placement.StepResult{Servers: servers}, nil
	}
	ranked := make([]*placement.Server, len(servers))
	copy(ranked, servers)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Derived.UnreservedRAM != ranked[j].Derived.UnreservedRAM {
			return ranked[i].Derived.UnreservedRAM > ranked[j].Derived.UnreservedRAM
		}
		return ranked[i].UUID < ranked[j].UUID
	})
	drop := int(math.Ceil(0.15 * float64(len(ranked))))
	dropped := make(map[string]struct{}, drop)
	for i := 0; i < drop && i < len(ranked); i++ {
		dropped[ranked[i].UUID] = struct{}{}
	}
	kept := make([]*placement.Server, 0, len(servers)-len(dropped))
	reasons := map[string]string{}
	for _, s := range servers {
		if _, isDropped := dropped[s.UUID]; isDropped {
			reasons[s.UUID] = "server reserved for large allocations"
			continue
		}
		kept = append(kept, s)
	}
	return &placement.StepResult{Servers: kept, Reasons: reasons}, nil
}

// HardFilterForceFailure empties the candidate set when the VM
// requests a forced designation failure, for test harnesses (spec
// §4.4, §7).
type HardFilterForceFailure struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterForceFailure) Name() string         { return "hard-filter-force-failure" }
func (*HardFilterForceFailure) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterForceFailure) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if c.VM.InternalMetadata["force_designation_failure"] == "" {
		return &placement.StepResult{Servers: servers}, nil
	}
	reasons := make(map[string]string, len(servers))
	for _, s := range servers {
		reasons[s.UUID] = "forced designation failure requested"
	}
	return &placement.StepResult{Servers: nil, Reasons: reasons}, nil
}

// HardFilterVolumesFrom requires a server to already host every VM
// named by vm.internal_metadata["docker:volumesfrom"] (spec §3, §4.4).
type HardFilterVolumesFrom struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterVolumesFrom) Name() string         { return "hard-filter-volumes-from" }
func (*HardFilterVolumesFrom) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterVolumesFrom) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	raw, ok := c.VM.InternalMetadata["docker:volumesfrom"]
	if !ok || raw == "" {
		return &placement.StepResult{Servers: servers}, nil
	}
	var required []string
	if err := json.Unmarshal([]byte(raw), &required); err != nil || len(required) == 0 {
		return &placement.StepResult{Servers: servers}, nil
	}
	return reject(servers, func(s *placement.Server) (bool, string) {
		for _, vmUUID := range required {
			if _, hosted := s.VMs[vmUUID]; !hosted {
				return false, "does not host docker:volumesfrom VM " + vmUUID
			}
		}
		return true, ""
	}), nil
}

func init() {
	Index["hard-filter-vm-count"] = func() placement.Algorithm { return &HardFilterVMCount{} }
	Index["hard-filter-large-servers"] = func() placement.Algorithm { return &HardFilterLargeServers{} }
	Index["hard-filter-force-failure"] = func() placement.Algorithm { return &HardFilterForceFailure{} }
	Index["hard-filter-volumes-from"] = func() placement.Algorithm { return &HardFilterVolumesFrom{} }
}
