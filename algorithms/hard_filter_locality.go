// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	placement "github.com/sapcc/node-placement"
)

// HardFilterLocalityHints enforces strict near/far constraints (spec
// §4.4, §4.8, §8 scenario S4): every far server is removed; if any
// hard-near server was named, at least one must survive, otherwise the
// whole candidate set is emptied.
type HardFilterLocalityHints struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterLocalityHints) Name() string         { return "hard-filter-locality-hints" }
func (*HardFilterLocalityHints) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterLocalityHints) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	withoutFar := reject(servers, func(s *placement.Server) (bool, string) {
		if _, isFar := c.HardFarServers[s.UUID]; isFar {
			return false, "server hosts a required-far instance"
		}
		return true, ""
	})
	if len(c.HardNearServers) == 0 {
		return withoutFar, nil
	}
	for _, s := range withoutFar.Servers {
		if _, isNear := c.HardNearServers[s.UUID]; isNear {
			return withoutFar, nil
		}
	}
	reasons := withoutFar.Reasons
	if reasons == nil {
		reasons = map[string]string{}
	}
	for _, s := range withoutFar.Servers {
		reasons[s.UUID] = "no required-near instance survived on any candidate"
	}
	return &placement.StepResult{Servers: nil, Reasons: reasons}, nil
}

func init() {
	Index["hard-filter-locality-hints"] = func() placement.Algorithm { return &HardFilterLocalityHints{} }
}
