// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	placement "github.com/sapcc/node-placement"
)

// HardFilterPlatformVersions requires the server's Live Image to fall
// within image.requirements.min_platform/max_platform, merged with
// package.min_platform as a floor (image entries win on key
// collision, mirroring the VM>image>package trait precedence of spec
// §4.3; spec §4.4).
type HardFilterPlatformVersions struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterPlatformVersions) Name() string         { return "hard-filter-platform-versions" }
func (*HardFilterPlatformVersions) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterPlatformVersions) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	minPlatform := mergePlatformMaps(c.Package.MinPlatform, c.Image.Requirements.MinPlatform)
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.SysInfo.LiveImage == "" {
			return true, ""
		}
		ok, reason := placement.PlatformSatisfiesAll(s.SysInfo.LiveImage, minPlatform, c.Image.Requirements.MaxPlatform)
		return ok, reason
	}), nil
}

func mergePlatformMaps(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// HardFilterFeatureMinPlatform applies the defaults-table conditional
// platform floors keyed on VM features actually in use: Docker brand,
// NFS-volume automounts split by brand, and flexible disk sizing
// (spec §4.4). Each VM
// feature is recognized through vm.internal_metadata, the spec's
// documented free-map escape hatch for fields outside the core schema
// (spec §3).
type HardFilterFeatureMinPlatform struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterFeatureMinPlatform) Name() string         { return "hard-filter-feature-min-platform" }
func (*HardFilterFeatureMinPlatform) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterFeatureMinPlatform) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	isDocker := c.VM.Brand == "docker"
	nfsAutomount := c.VM.InternalMetadata["nfs_volumes_automount"] == "true"
	flexibleDisk := c.VM.InternalMetadata["flexible_disk"] == "true"

	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.SysInfo.LiveImage == "" {
			return true, ""
		}
		if isDocker {
			if ok, reason := checkFeatureFloor(s.SysInfo.LiveImage, c.Defaults.FilterDockerMinPlatform); !ok {
				return false, "docker brand: " + reason
			}
		}
		if flexibleDisk {
			if ok, reason := checkFeatureFloor(s.SysInfo.LiveImage, c.Defaults.FilterFlexibleDiskMinPlatform); !ok {
				return false, "flexible disk: " + reason
			}
		}
		if nfsAutomount {
			floor := c.Defaults.FilterNonDockerNFSVolumesAutomountMinPlatform
			label := "nfs volumes automount (non-docker)"
			if isDocker {
				floor = c.Defaults.FilterDockerNFSVolumesAutomountMinPlatform
				label = "nfs volumes automount (docker)"
			}
			if ok, reason := checkFeatureFloor(s.SysInfo.LiveImage, floor); !ok {
				return false, label + ": " + reason
			}
		}
		return true, ""
	}), nil
}

func checkFeatureFloor(liveImage string, floor map[string]string) (bool, string) {
	for version, required := range floor {
		if placement.ComparePlatform(liveImage, required) < 0 {
			return false, "live image older than required min_platform[" + version + "]"
		}
	}
	return true, ""
}

func init() {
	Index["hard-filter-platform-versions"] = func() placement.Algorithm { return &HardFilterPlatformVersions{} }
	Index["hard-filter-feature-min-platform"] = func() placement.Algorithm { return &HardFilterFeatureMinPlatform{} }
}
