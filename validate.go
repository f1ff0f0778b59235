// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Regexes mirror spec §4.1 exactly; they are the binding format, not a
// convenience. uuidPattern intentionally only accepts lowercase hex,
// narrower than github.com/google/uuid's own parser.
var (
	uuidPattern     = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
	platformPattern = regexp.MustCompile(`^20\d\d[01]\d[0123]\dT[012]\d[012345]\d\d\dZ$`)
	sdcVersionPattern = regexp.MustCompile(`^\d\.\d$`)
)

var validSpreads = map[ServerSpread]bool{
	SpreadNone:     true,
	SpreadMinRAM:   true,
	SpreadMaxRAM:   true,
	SpreadRandom:   true,
	SpreadMinOwner: true,
}

// isUUID checks the spec's exact regex first (the binding rule, §4.1),
// then layers github.com/google/uuid's structural parser as an extra
// sanity pass. Either failing is a validation failure: the regex is
// deliberately stricter (lowercase only) than uuid.Validate, so the
// second check can never rescue a regex failure, and every string the
// regex accepts also passes uuid.Validate.
func isUUID(s string) bool {
	if !uuidPattern.MatchString(s) {
		return false
	}
	return uuid.Validate(s) == nil
}

func isPlatformTimestamp(s string) bool {
	return platformPattern.MatchString(s)
}

// ValidateVM checks the invariants of spec §3/§4.1 for a VM request. It
// does not need the image to validate most fields, but the ram-within-
// image-bounds invariant is checked by ValidateVMAgainstImage once the
// image is known.
func ValidateVM(vm VM) error {
	if vm.UUID != "" && !isUUID(vm.UUID) {
		return fmt.Errorf("vm: invalid vm_uuid %q", vm.UUID)
	}
	if vm.OwnerUUID == "" {
		return fmt.Errorf("vm: owner_uuid is required")
	}
	if !isUUID(vm.OwnerUUID) {
		return fmt.Errorf("vm: invalid owner_uuid %q", vm.OwnerUUID)
	}
	if vm.RAM <= 0 {
		return fmt.Errorf("vm: ram is required and must be positive")
	}
	if vm.Quota < 0 {
		return fmt.Errorf("vm: quota must not be negative")
	}
	if vm.CPUCap < 0 {
		return fmt.Errorf("vm: cpu_cap must not be negative")
	}
	for _, rule := range vm.Affinity {
		if rule.Operator != AffinityEquals && rule.Operator != AffinityNotEquals {
			return fmt.Errorf("vm: affinity rule has invalid operator %q", rule.Operator)
		}
		switch rule.ValueType {
		case AffinityValueExact, AffinityValueGlob, AffinityValueRegex:
		default:
			return fmt.Errorf("vm: affinity rule has invalid valueType %q", rule.ValueType)
		}
		if rule.Key == "" {
			return fmt.Errorf("vm: affinity rule is missing key")
		}
	}
	for _, uuidStr := range vm.Locality.Near {
		if !isUUID(uuidStr) {
			return fmt.Errorf("vm: locality.near contains invalid uuid %q", uuidStr)
		}
	}
	for _, uuidStr := range vm.Locality.Far {
		if !isUUID(uuidStr) {
			return fmt.Errorf("vm: locality.far contains invalid uuid %q", uuidStr)
		}
	}
	return nil
}

const epsilonRAM = 0.01

// ValidateVMAgainstImage checks spec §3's ram-within-[min_ram-ε,max_ram+ε]
// invariant. Called by the allocator facade once the image is resolved.
func ValidateVMAgainstImage(vm VM, img Image) error {
	if img.Requirements.MinRAM > 0 && vm.RAM < img.Requirements.MinRAM-epsilonRAM {
		return fmt.Errorf("vm: ram %v below image min_ram %v", vm.RAM, img.Requirements.MinRAM)
	}
	if img.Requirements.MaxRAM > 0 && vm.RAM > img.Requirements.MaxRAM+epsilonRAM {
		return fmt.Errorf("vm: ram %v above image max_ram %v", vm.RAM, img.Requirements.MaxRAM)
	}
	return nil
}

// ValidateImage checks the invariants of spec §3 for an image manifest.
func ValidateImage(img Image) error {
	if img.ImageSize < 0 {
		return fmt.Errorf("image: image_size must not be negative")
	}
	if img.Requirements.MinRAM < 0 || img.Requirements.MaxRAM < 0 {
		return fmt.Errorf("image: requirements.min_ram/max_ram must not be negative")
	}
	if img.Requirements.MinRAM > 0 && img.Requirements.MaxRAM > 0 && img.Requirements.MinRAM > img.Requirements.MaxRAM {
		return fmt.Errorf("image: requirements.min_ram exceeds max_ram")
	}
	if err := validatePlatformMap("image.requirements.min_platform", img.Requirements.MinPlatform); err != nil {
		return err
	}
	if err := validatePlatformMap("image.requirements.max_platform", img.Requirements.MaxPlatform); err != nil {
		return err
	}
	return nil
}

func validatePlatformMap(field string, m map[string]string) error {
	for sdcVersion, ts := range m {
		if !sdcVersionPattern.MatchString(sdcVersion) {
			return fmt.Errorf("%s: invalid SDC version key %q", field, sdcVersion)
		}
		if !isPlatformTimestamp(ts) {
			return fmt.Errorf("%s[%s]: invalid platform timestamp %q", field, sdcVersion, ts)
		}
	}
	return nil
}

// ValidatePackage checks the invariants of spec §3 for a package.
func ValidatePackage(pkg Package) error {
	if pkg.MaxPhysicalMemory < 0 {
		return fmt.Errorf("package: max_physical_memory must not be negative")
	}
	if pkg.Quota < 0 {
		return fmt.Errorf("package: quota must not be negative")
	}
	if pkg.CPUCap < 0 {
		return fmt.Errorf("package: cpu_cap must not be negative")
	}
	if !validSpreads[pkg.AllocServerSpread] {
		return fmt.Errorf("package: invalid alloc_server_spread %q", pkg.AllocServerSpread)
	}
	for _, ratio := range []struct{ name string; val float64 }{
		{"overprovision_cpu", pkg.OverprovisionCPU},
		{"overprovision_memory", pkg.OverprovisionMemory},
		{"overprovision_storage", pkg.OverprovisionStorage},
	} {
		if ratio.val < 0 {
			return fmt.Errorf("package: %s must not be negative", ratio.name)
		}
	}
	if err := validatePlatformMap("package.min_platform", pkg.MinPlatform); err != nil {
		return err
	}
	return nil
}

// ValidateServer checks the invariants of spec §3 for a single server.
// Per spec §4.1/§9, a malformed server is never fatal to the whole
// allocation: callers invoke this from hard-filter-invalid-servers,
// which drops only the offending server.
func ValidateServer(s Server) error {
	if s.UUID != "" && !isUUID(s.UUID) {
		return fmt.Errorf("server: invalid uuid %q", s.UUID)
	}
	if s.MemoryAvailableBytes > s.MemoryTotalBytes {
		return fmt.Errorf("server: memory_available_bytes exceeds memory_total_bytes")
	}
	if s.ReservationRatio < 0 || s.ReservationRatio > 1 {
		return fmt.Errorf("server: reservation_ratio %v out of [0,1]", s.ReservationRatio)
	}
	for vmUUID, vm := range s.VMs {
		if vm.MaxPhysicalMemory <= 0 {
			return fmt.Errorf("server: vm %s has non-positive max_physical_memory", vmUUID)
		}
		switch vm.State {
		case VMStateRunning, VMStateStopped, VMStateFailed, VMStateProvisioning:
		default:
			if vm.State == "" {
				return fmt.Errorf("server: vm %s is missing state", vmUUID)
			}
			// Unknown-but-present states are tolerated; spec lists the
			// enumeration with a trailing "...".
		}
	}
	if s.SysInfo.LiveImage != "" && !isPlatformTimestamp(s.SysInfo.LiveImage) {
		return fmt.Errorf("server: invalid sysinfo Live Image timestamp %q", s.SysInfo.LiveImage)
	}
	return nil
}

// ValidateTicket checks the invariants of spec §3 for a ticket.
func ValidateTicket(t Ticket) error {
	if t.ServerUUID != "" && !isUUID(t.ServerUUID) {
		return fmt.Errorf("ticket: invalid server_uuid %q", t.ServerUUID)
	}
	switch t.Status {
	case TicketStatusQueued, TicketStatusActive, TicketStatusFinished:
	default:
		return fmt.Errorf("ticket: invalid status %q", t.Status)
	}
	return nil
}

// ValidateDefaults checks the invariants of spec §6's defaults record.
func ValidateDefaults(d Defaults) error {
	if d.FilterVMLimit < 0 {
		return fmt.Errorf("defaults: filter_vm_limit must not be negative")
	}
	for _, ratio := range []struct{ name string; val float64 }{
		{"overprovision_ratio_cpu", d.OverprovisionRatioCPU},
		{"overprovision_ratio_ram", d.OverprovisionRatioRAM},
		{"overprovision_ratio_disk", d.OverprovisionRatioDisk},
	} {
		if ratio.val < 0 {
			return fmt.Errorf("defaults: %s must not be negative", ratio.name)
		}
	}
	if d.ServerSpread != "" && !validSpreads[d.ServerSpread] {
		return fmt.Errorf("defaults: invalid server_spread %q", d.ServerSpread)
	}
	for _, m := range []struct{ name string; val map[string]string }{
		{"filter_docker_min_platform", d.FilterDockerMinPlatform},
		{"filter_flexible_disk_min_platform", d.FilterFlexibleDiskMinPlatform},
		{"filter_docker_nfs_volumes_automount_min_platform", d.FilterDockerNFSVolumesAutomountMinPlatform},
		{"filter_non_docker_nfs_volumes_automount_min_platform", d.FilterNonDockerNFSVolumesAutomountMinPlatform},
	} {
		if err := validatePlatformMap("defaults."+m.name, m.val); err != nil {
			return err
		}
	}
	return nil
}
