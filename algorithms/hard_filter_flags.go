// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	placement "github.com/sapcc/node-placement"
)

// HardFilterSetup keeps only servers that have completed initial
// datacenter setup (spec §4.4).
type HardFilterSetup struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterSetup) Name() string         { return "hard-filter-setup" }
func (*HardFilterSetup) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterSetup) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		if !s.Setup {
			return false, "server is not set up"
		}
		return true, ""
	}), nil
}

// HardFilterRunning keeps only servers currently running.
type HardFilterRunning struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterRunning) Name() string         { return "hard-filter-running" }
func (*HardFilterRunning) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterRunning) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		if !s.Running {
			return false, "server is not running"
		}
		return true, ""
	}), nil
}

// HardFilterReserved drops servers reserved for purposes outside
// ordinary allocation.
type HardFilterReserved struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterReserved) Name() string         { return "hard-filter-reserved" }
func (*HardFilterReserved) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterReserved) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.Reserved {
			return false, "server is reserved"
		}
		return true, ""
	}), nil
}

// HardFilterReservoir drops servers belonging to the spare-capacity
// reservoir pool, which is excluded from ordinary allocation.
type HardFilterReservoir struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterReservoir) Name() string         { return "hard-filter-reservoir" }
func (*HardFilterReservoir) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterReservoir) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.Reservoir {
			return false, "server belongs to the reservoir pool"
		}
		return true, ""
	}), nil
}

// HardFilterHeadnode drops headnode servers when enabled by
// Defaults.FilterHeadnode (spec §4.4, §6).
type HardFilterHeadnode struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterHeadnode) Name() string         { return "hard-filter-headnode" }
func (*HardFilterHeadnode) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterHeadnode) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if !c.Defaults.FilterHeadnode {
		return &placement.StepResult{Servers: servers}, nil
	}
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.Headnode {
			return false, "server is the headnode"
		}
		return true, ""
	}), nil
}

// HardFilterVirtualServers drops non-physical (virtual) compute nodes.
type HardFilterVirtualServers struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterVirtualServers) Name() string         { return "hard-filter-virtual-servers" }
func (*HardFilterVirtualServers) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterVirtualServers) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		if s.IsVirtual {
			return false, "server is virtual"
		}
		return true, ""
	}), nil
}

// HardFilterInvalidServers drops servers that fail Validation, instead
// of failing the whole allocation (spec §4.1's documented exception).
type HardFilterInvalidServers struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterInvalidServers) Name() string         { return "hard-filter-invalid-servers" }
func (*HardFilterInvalidServers) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterInvalidServers) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	return reject(servers, func(s *placement.Server) (bool, string) {
		if !s.Derived.DerivationOK {
			return false, "server failed validation or derivation"
		}
		if err := placement.ValidateServer(*s); err != nil {
			return false, err.Error()
		}
		return true, ""
	}), nil
}

func init() {
	Index["hard-filter-setup"] = func() placement.Algorithm { return &HardFilterSetup{} }
	Index["hard-filter-running"] = func() placement.Algorithm { return &HardFilterRunning{} }
	Index["hard-filter-reserved"] = func() placement.Algorithm { return &HardFilterReserved{} }
	Index["hard-filter-reservoir"] = func() placement.Algorithm { return &HardFilterReservoir{} }
	Index["hard-filter-headnode"] = func() placement.Algorithm { return &HardFilterHeadnode{} }
	Index["hard-filter-virtual-servers"] = func() placement.Algorithm { return &HardFilterVirtualServers{} }
	Index["hard-filter-invalid-servers"] = func() placement.Algorithm { return &HardFilterInvalidServers{} }
}
