// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"testing"

	placement "github.com/sapcc/node-placement"
)

const (
	platformOld = "20200101T000000Z"
	platformNew = "20220101T000000Z"
)

func TestHardFilterPlatformVersions_NoLiveImageIsNoop(t *testing.T) {
	servers := []*placement.Server{{UUID: "s"}}
	c := placement.Constraints{Package: placement.Package{MinPlatform: map[string]string{"7.0": platformNew}}}
	out := runFilter(t, &HardFilterPlatformVersions{}, servers, c)
	if !containsUUID(out, "s") {
		t.Errorf("expected server without a live image to pass, got %v", uuids(out))
	}
}

func TestHardFilterPlatformVersions_RejectsBelowMin(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "old", SysInfo: placement.SysInfo{LiveImage: platformOld}},
		{UUID: "new", SysInfo: placement.SysInfo{LiveImage: platformNew}},
	}
	c := placement.Constraints{
		Image: placement.Image{Requirements: placement.ImageRequirements{MinPlatform: map[string]string{"7.0": platformNew}}},
	}
	out := runFilter(t, &HardFilterPlatformVersions{}, servers, c)
	if containsUUID(out, "old") || !containsUUID(out, "new") {
		t.Errorf("got %v", uuids(out))
	}
}

func TestHardFilterPlatformVersions_RejectsAboveMax(t *testing.T) {
	servers := []*placement.Server{{UUID: "too-new", SysInfo: placement.SysInfo{LiveImage: platformNew}}}
	c := placement.Constraints{
		Image: placement.Image{Requirements: placement.ImageRequirements{MaxPlatform: map[string]string{"7.0": platformOld}}},
	}
	out := runFilter(t, &HardFilterPlatformVersions{}, servers, c)
	if containsUUID(out, "too-new") {
		t.Errorf("expected server above max_platform to be rejected, got %v", uuids(out))
	}
}

func TestHardFilterPlatformVersions_ImageOverridesPackageFloor(t *testing.T) {
	// Package sets a low floor, image raises it for the same SDC version key.
	servers := []*placement.Server{{UUID: "mid", SysInfo: placement.SysInfo{LiveImage: platformOld}}}
	c := placement.Constraints{
		Package: placement.Package{MinPlatform: map[string]string{"7.0": "20190101T000000Z"}},
		Image:   placement.Image{Requirements: placement.ImageRequirements{MinPlatform: map[string]string{"7.0": platformNew}}},
	}
	out := runFilter(t, &HardFilterPlatformVersions{}, servers, c)
	if containsUUID(out, "mid") {
		t.Errorf("expected image's min_platform to win over package's lower floor, got %v", uuids(out))
	}
}

func TestHardFilterFeatureMinPlatform_NoLiveImageIsNoop(t *testing.T) {
	servers := []*placement.Server{{UUID: "s"}}
	c := placement.Constraints{
		VM:       placement.VM{Brand: "docker"},
		Defaults: placement.Defaults{FilterDockerMinPlatform: map[string]string{"7.0": platformNew}},
	}
	out := runFilter(t, &HardFilterFeatureMinPlatform{}, servers, c)
	if !containsUUID(out, "s") {
		t.Errorf("expected no-op without a live image, got %v", uuids(out))
	}
}

func TestHardFilterFeatureMinPlatform_DockerFloor(t *testing.T) {
	servers := []*placement.Server{
		{UUID: "old", SysInfo: placement.SysInfo{LiveImage: platformOld}},
		{UUID: "new", SysInfo: placement.SysInfo{LiveImage: platformNew}},
	}
	c := placement.Constraints{
		VM:       placement.VM{Brand: "docker"},
		Defaults: placement.Defaults{FilterDockerMinPlatform: map[string]string{"7.0": platformNew}},
	}
	out := runFilter(t, &HardFilterFeatureMinPlatform{}, servers, c)
	if containsUUID(out, "old") || !containsUUID(out, "new") {
		t.Errorf("got %v", uuids(out))
	}
}

func TestHardFilterFeatureMinPlatform_DockerFloorIgnoredWhenNotDocker(t *testing.T) {
	servers := []*placement.Server{{UUID: "old", SysInfo: placement.SysInfo{LiveImage: platformOld}}}
	c := placement.Constraints{
		VM:       placement.VM{Brand: "kvm"},
		Defaults: placement.Defaults{FilterDockerMinPlatform: map[string]string{"7.0": platformNew}},
	}
	out := runFilter(t, &HardFilterFeatureMinPlatform{}, servers, c)
	if !containsUUID(out, "old") {
		t.Errorf("expected docker-only floor to be skipped for a non-docker brand, got %v", uuids(out))
	}
}

func TestHardFilterFeatureMinPlatform_FlexibleDisk(t *testing.T) {
	servers := []*placement.Server{{UUID: "old", SysInfo: placement.SysInfo{LiveImage: platformOld}}}
	c := placement.Constraints{
		VM: placement.VM{InternalMetadata: map[string]string{"flexible_disk": "true"}},
		Defaults: placement.Defaults{FilterFlexibleDiskMinPlatform: map[string]string{"7.0": platformNew}},
	}
	out := runFilter(t, &HardFilterFeatureMinPlatform{}, servers, c)
	if containsUUID(out, "old") {
		t.Errorf("expected flexible_disk floor to reject, got %v", uuids(out))
	}
}

func TestHardFilterFeatureMinPlatform_NFSAutomountSplitsByBrand(t *testing.T) {
	c := placement.Constraints{
		VM: placement.VM{Brand: "docker", InternalMetadata: map[string]string{"nfs_volumes_automount": "true"}},
		Defaults: placement.Defaults{
			FilterDockerNFSVolumesAutomountMinPlatform:    map[string]string{"7.0": platformNew},
			FilterNonDockerNFSVolumesAutomountMinPlatform: map[string]string{"7.0": platformOld},
		},
	}
	servers := []*placement.Server{{UUID: "old", SysInfo: placement.SysInfo{LiveImage: platformOld}}}
	out := runFilter(t, &HardFilterFeatureMinPlatform{}, servers, c)
	if containsUUID(out, "old") {
		t.Errorf("expected docker nfs-automount floor to be applied for docker brand, got %v", uuids(out))
	}

	c.VM.Brand = "kvm"
	out = runFilter(t, &HardFilterFeatureMinPlatform{}, servers, c)
	if !containsUUID(out, "old") {
		t.Errorf("expected the lower non-docker nfs-automount floor to be used for a non-docker brand, got %v", uuids(out))
	}
}
