// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

// BuildConstraints merges VM/image/package/defaults into the effective
// Constraints the pipeline consults (spec §4.3): the trait union and
// the override-overprovisioning flag. Per-server overprovision ratio
// resolution happens later, in DeriveServer, since the precedence chain
// can fall back to an individual server's own advertised ratio (spec
// §4.2) and so cannot be resolved once for the whole allocation.
func BuildConstraints(vm VM, img Image, pkg Package, defaults Defaults, overrideOverprovisioning bool) Constraints {
	return Constraints{
		VM: vm, Image: img, Package: pkg, Defaults: defaults,
		OverrideOverprovisioning: overrideOverprovisioning,
		RequiredTraits:           UnionTraits(vm.Traits, img.Traits, pkg.Traits),
	}
}

// resolveRatio implements spec §4.3's precedence for one overprovision
// dimension: override-overprovisioning (if enabled) forces defaults;
// otherwise the package ratio wins, then the server's advertised
// ratio, then defaults. A missing memory/storage ratio means "do not
// overprovision" (1.0); a missing CPU ratio means "unbounded" (spec
// §4.2).
func resolveRatio(pkgRatio float64, serverRatio *float64, defaultRatio float64, overrideOn bool, isCPU bool) float64 {
	if overrideOn {
		return orUnbounded(defaultRatio, isCPU)
	}
	if pkgRatio > 0 {
		return pkgRatio
	}
	if serverRatio != nil && *serverRatio > 0 {
		return *serverRatio
	}
	return orUnbounded(defaultRatio, isCPU)
}

func orUnbounded(ratio float64, isCPU bool) float64 {
	if ratio > 0 {
		return ratio
	}
	if isCPU {
		return unboundedCPURatio
	}
	return 1.0
}

// unboundedCPURatio stands in for "+Inf" in spec §4.2 (missing CPU
// ratio = unbounded). Kept finite so downstream arithmetic never
// produces NaN/Inf.
const unboundedCPURatio = 1e18

// TicketCharge is the pre-charge a ticket contributes to a server that
// hasn't yet surfaced the corresponding VM in its inventory (spec §3,
// §4.11 step 3).
type TicketCharge struct {
	RAM    float64
	CPUCap float64
}

// DeriveServer computes the per-server derived fields of spec §4.2,
// including this server's resolved overprovision ratios (spec §4.3),
// which the Unreserved* formulas depend on. recentCharge additionally charges RAM/CPU for
// tickets that reference this server but whose VM has not yet surfaced
// in s.VMs (the calculate-recent-vms stage, spec §4.11 step 3).
//
// Grounded on the teacher's shared.ResourceBalancingStep /
// filter_has_enough_capacity.go read pattern: subtract committed
// resources from a capacity baseline, generalized from Nova's
// vCPU/MB integer slots to the spec's continuous unreserved-resource
// math.
func DeriveServer(s Server, c Constraints, recentCharge TicketCharge) ServerDerived {
	committedRAM := recentCharge.RAM
	committedCPU := recentCharge.CPUCap
	for _, vm := range s.VMs {
		committedRAM += vm.MaxPhysicalMemory
		committedCPU += vm.CPUCap
	}

	ratioCPU := resolveRatio(c.Package.OverprovisionCPU, s.OverprovisionCPU, c.Defaults.OverprovisionRatioCPU, c.OverrideOverprovisioning, true)
	ratioMemory := resolveRatio(c.Package.OverprovisionMemory, s.OverprovisionMemory, c.Defaults.OverprovisionRatioRAM, c.OverrideOverprovisioning, false)
	ratioStorage := resolveRatio(c.Package.OverprovisionStorage, s.OverprovisionStorage, c.Defaults.OverprovisionRatioDisk, c.OverrideOverprovisioning, false)

	totalRAMMiB := s.MemoryTotalBytes * (1 - s.ReservationRatio) / (1 << 20)
	unreservedRAM := clampNonNegative(totalRAMMiB*ratioMemory - committedRAM)

	unreservedCPU := clampNonNegative(float64(s.SysInfo.CPUOnlineCount)*100*ratioCPU - committedCPU)

	unreservedDisk := clampNonNegative(deriveDiskMiB(s, ratioStorage))

	return ServerDerived{
		UnreservedRAM:  unreservedRAM,
		UnreservedCPU:  unreservedCPU,
		UnreservedDisk: unreservedDisk,
		DerivationOK:   true,
		RatioCPU:       ratioCPU,
		RatioMemory:    ratioMemory,
		RatioStorage:   ratioStorage,
	}
}

// deriveDiskMiB implements spec §4.2's disk formula:
//
//	pool_size - images_used - kvm_quota - cores_quota -
//	  (zone_quota / overprovision_storage) when zone_quota > already-consumed
//	  otherwise nominal zone_quota
//
// KVM disk zvols are always charged at nominal size; only the *free*
// portion of non-KVM zone quota benefits from overprovisioning.
func deriveDiskMiB(s Server, diskRatio float64) float64 {
	bytesToMiB := func(b float64) float64 { return b / (1 << 20) }

	pool := bytesToMiB(s.DiskPoolSizeBytes)
	images := bytesToMiB(s.DiskInstalledImagesUsedBytes)
	kvmQuota := bytesToMiB(s.DiskKVMQuotaBytes)
	coresQuota := bytesToMiB(s.DiskCoresQuotaUsedBytes)
	zoneQuota := bytesToMiB(s.DiskZoneQuotaBytes)

	consumed := images + kvmQuota + coresQuota
	var zoneCharge float64
	if zoneQuota > consumed {
		ratio := diskRatio
		if ratio <= 0 {
			ratio = 1.0
		}
		zoneCharge = zoneQuota / ratio
	} else {
		zoneCharge = zoneQuota
	}
	return pool - images - kvmQuota - coresQuota - zoneCharge
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
