// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	placement "github.com/sapcc/node-placement"
)

// HardFilterTraits requires every trait in the VM+image+package union
// to be satisfied by the server's own traits (spec §4.4, §4.3).
type HardFilterTraits struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterTraits) Name() string         { return "hard-filter-traits" }
func (*HardFilterTraits) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterTraits) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		return placement.MatchAllTraits(c.RequiredTraits, s.Traits)
	}), nil
}

// HardFilterVLANs requires every requested nic_tag to be reachable on
// at least one up network interface (spec §4.4).
type HardFilterVLANs struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterVLANs) Name() string         { return "hard-filter-vlans" }
func (*HardFilterVLANs) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterVLANs) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if len(c.VM.NicTags) == 0 {
		return &placement.StepResult{Servers: servers}, nil
	}
	return reject(servers, func(s *placement.Server) (bool, string) {
		for _, tag := range c.VM.NicTags {
			if !serverHasUpNicTag(s, tag) {
				return false, "no up interface carries nic_tag " + tag
			}
		}
		return true, ""
	}), nil
}

func serverHasUpNicTag(s *placement.Server, tag string) bool {
	for ifaceName, iface := range s.SysInfo.NetworkInterfaces {
		if iface.LinkStatus != "up" {
			continue
		}
		if ifaceName == tag {
			return true
		}
		for _, name := range iface.NICNames {
			if name == tag {
				return true
			}
		}
	}
	return false
}

func init() {
	Index["hard-filter-traits"] = func() placement.Algorithm { return &HardFilterTraits{} }
	Index["hard-filter-vlans"] = func() placement.Algorithm { return &HardFilterVLANs{} }
}
