// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"fmt"
	"math"

	placement "github.com/sapcc/node-placement"
)

const overprovisionRatioEpsilon = 1e-6

// HardFilterMinRAM requires unreserved RAM to cover the request (spec
// §4.4, §4.2). Gated by Defaults.FilterMinResources.
type HardFilterMinRAM struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterMinRAM) Name() string            { return "hard-filter-min-ram" }
func (*HardFilterMinRAM) Kind() placement.Kind     { return placement.KindHardFilter }
func (*HardFilterMinRAM) AffectsCapacity() bool    { return true }

func (*HardFilterMinRAM) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if !c.Defaults.FilterMinResources {
		return &placement.StepResult{Servers: servers}, nil
	}
	needed := requestedRAM(c)
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.Derived.UnreservedRAM < needed {
			return false, fmt.Sprintf("insufficient RAM: need %.0f MiB, have %.0f MiB", needed, s.Derived.UnreservedRAM)
		}
		return true, ""
	}), nil
}

func (*HardFilterMinRAM) ProbeCapacity(state *placement.State, s *placement.Server, c placement.Constraints, budget placement.CapacityBudget) (placement.CapacityBudget, bool, string) {
	if budget.RAM > s.Derived.UnreservedRAM {
		budget.RAM = s.Derived.UnreservedRAM
	}
	return budget, true, ""
}

// HardFilterMinCPU requires unreserved CPU to cover the requested cap.
type HardFilterMinCPU struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterMinCPU) Name() string         { return "hard-filter-min-cpu" }
func (*HardFilterMinCPU) Kind() placement.Kind { return placement.KindHardFilter }
func (*HardFilterMinCPU) AffectsCapacity() bool { return true }

func (*HardFilterMinCPU) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if !c.Defaults.FilterMinResources {
		return &placement.StepResult{Servers: servers}, nil
	}
	needed := requestedCPU(c)
	return reject(servers, func(s *placement.Server) (bool, string) {
		if needed > 0 && s.Derived.UnreservedCPU < needed {
			return false, fmt.Sprintf("insufficient CPU: need %.0f%%, have %.0f%%", needed, s.Derived.UnreservedCPU)
		}
		return true, ""
	}), nil
}

func (*HardFilterMinCPU) ProbeCapacity(state *placement.State, s *placement.Server, c placement.Constraints, budget placement.CapacityBudget) (placement.CapacityBudget, bool, string) {
	if budget.CPU > s.Derived.UnreservedCPU {
		budget.CPU = s.Derived.UnreservedCPU
	}
	return budget, true, ""
}

// HardFilterMinDisk requires unreserved disk to cover the request,
// under overprovisioning (spec §4.4, §4.2).
type HardFilterMinDisk struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterMinDisk) Name() string         { return "hard-filter-min-disk" }
func (*HardFilterMinDisk) Kind() placement.Kind { return placement.KindHardFilter }
func (*HardFilterMinDisk) AffectsCapacity() bool { return true }

func (*HardFilterMinDisk) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if !c.Defaults.FilterMinResources {
		return &placement.StepResult{Servers: servers}, nil
	}
	needed := requestedDiskMiB(c)
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.Derived.UnreservedDisk < needed {
			return false, fmt.Sprintf("insufficient disk: need %.0f MiB, have %.0f MiB", needed, s.Derived.UnreservedDisk)
		}
		return true, ""
	}), nil
}

func (*HardFilterMinDisk) ProbeCapacity(state *placement.State, s *placement.Server, c placement.Constraints, budget placement.CapacityBudget) (placement.CapacityBudget, bool, string) {
	if budget.Disk > s.Derived.UnreservedDisk {
		budget.Disk = s.Derived.UnreservedDisk
	}
	return budget, true, ""
}

// HardFilterMinFreeDisk checks raw pool free space, independent of
// overprovision (spec §4.4).
type HardFilterMinFreeDisk struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterMinFreeDisk) Name() string          { return "hard-filter-min-free-disk" }
func (*HardFilterMinFreeDisk) Kind() placement.Kind  { return placement.KindHardFilter }
func (*HardFilterMinFreeDisk) AffectsCapacity() bool { return true }

func (*HardFilterMinFreeDisk) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	needed := requestedDiskMiB(c)
	return reject(servers, func(s *placement.Server) (bool, string) {
		free := rawFreeDiskMiB(s)
		if free < needed {
			return false, fmt.Sprintf("insufficient raw free disk: need %.0f MiB, have %.0f MiB", needed, free)
		}
		return true, ""
	}), nil
}

func (*HardFilterMinFreeDisk) ProbeCapacity(state *placement.State, s *placement.Server, c placement.Constraints, budget placement.CapacityBudget) (placement.CapacityBudget, bool, string) {
	if free := rawFreeDiskMiB(s); budget.Disk > free {
		budget.Disk = free
	}
	return budget, true, ""
}

func rawFreeDiskMiB(s *placement.Server) float64 {
	const mib = 1 << 20
	pool := s.DiskPoolSizeBytes / mib
	used := (s.DiskInstalledImagesUsedBytes + s.DiskKVMQuotaBytes + s.DiskCoresQuotaUsedBytes + s.DiskZoneQuotaBytes) / mib
	return pool - used
}

// HardFilterOverprovisionRatios rejects a server whose explicitly
// advertised overprovision ratio disagrees with the package's
// explicitly requested ratio (spec §4.3, §4.4). It is a no-op for any
// dimension where either side leaves the ratio unset -- the precedence
// chain in DeriveServer already resolved a usable ratio for those
// cases, and there is nothing left to disagree about. Per spec §9's
// open question, ratios are compared with an epsilon tolerance rather
// than strict equality, since fleets commonly advertise 1.0 vs 1.00.
type HardFilterOverprovisionRatios struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterOverprovisionRatios) Name() string         { return "hard-filter-overprovision-ratios" }
func (*HardFilterOverprovisionRatios) Kind() placement.Kind { return placement.KindHardFilter }
func (*HardFilterOverprovisionRatios) AffectsCapacity() bool { return true }

func (*HardFilterOverprovisionRatios) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		ok, reason := ratiosAgree(c, s)
		return ok, reason
	}), nil
}

func (*HardFilterOverprovisionRatios) ProbeCapacity(state *placement.State, s *placement.Server, c placement.Constraints, budget placement.CapacityBudget) (placement.CapacityBudget, bool, string) {
	ok, reason := ratiosAgree(c, s)
	return budget, ok, reason
}

func ratiosAgree(c placement.Constraints, s *placement.Server) (bool, string) {
	check := func(pkgRatio float64, serverRatio *float64, dimension string) (bool, string) {
		if pkgRatio <= 0 || serverRatio == nil || *serverRatio <= 0 {
			return true, ""
		}
		if math.Abs(pkgRatio-*serverRatio) > overprovisionRatioEpsilon {
			return false, fmt.Sprintf("%s overprovision ratio mismatch: requested %.4f, server advertises %.4f", dimension, pkgRatio, *serverRatio)
		}
		return true, ""
	}
	if ok, reason := check(c.Package.OverprovisionCPU, s.OverprovisionCPU, "cpu"); !ok {
		return false, reason
	}
	if ok, reason := check(c.Package.OverprovisionMemory, s.OverprovisionMemory, "memory"); !ok {
		return false, reason
	}
	if ok, reason := check(c.Package.OverprovisionStorage, s.OverprovisionStorage, "storage"); !ok {
		return false, reason
	}
	return true, ""
}

func init() {
	Index["hard-filter-min-ram"] = func() placement.Algorithm { return &HardFilterMinRAM{} }
	Index["hard-filter-min-cpu"] = func() placement.Algorithm { return &HardFilterMinCPU{} }
	Index["hard-filter-min-disk"] = func() placement.Algorithm { return &HardFilterMinDisk{} }
	Index["hard-filter-min-free-disk"] = func() placement.Algorithm { return &HardFilterMinFreeDisk{} }
	Index["hard-filter-overprovision-ratios"] = func() placement.Algorithm { return &HardFilterOverprovisionRatios{} }
}
