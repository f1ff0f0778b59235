// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"time"

	placement "github.com/sapcc/node-placement"
)

// HardFilterRecentServers drops every server recorded in the recent-
// server memory (spec §4.7), accepting the risk of an empty result. Use
// soft-filter-recent-servers instead where an empty candidate set is
// unacceptable.
type HardFilterRecentServers struct {
	placement.BaseAlgorithm[struct{}]
}

func (*HardFilterRecentServers) Name() string         { return "hard-filter-recent-servers" }
func (*HardFilterRecentServers) Kind() placement.Kind { return placement.KindHardFilter }

func (*HardFilterRecentServers) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	recent := recentServersFromState(state)
	if recent == nil {
		return &placement.StepResult{Servers: servers}, nil
	}
	seen := recent.Snapshot()
	return reject(servers, func(s *placement.Server) (bool, string) {
		if _, isRecent := seen[s.UUID]; isRecent {
			return false, "server was used by a recent allocation"
		}
		return true, ""
	}), nil
}

func recentServersFromState(state *placement.State) *placement.RecentServers {
	v, _ := state.Get(placement.StateKeyRecentServers).(*placement.RecentServers)
	return v
}

// Post records the chosen server into the recent-server memory (spec
// §4.7, §4.11 step 8).
func (*HardFilterRecentServers) Post(log placement.Logger, state *placement.State, chosen *placement.Server) {
	recordRecentServer(state, chosen)
}

func recordRecentServer(state *placement.State, chosen *placement.Server) {
	if chosen == nil {
		return
	}
	recent := recentServersFromState(state)
	if recent == nil {
		return
	}
	now, _ := state.Get(placement.StateKeyNow).(time.Time)
	if now.IsZero() {
		now = time.Now()
	}
	recent.Record(chosen.UUID, now)
}

func init() {
	Index["hard-filter-recent-servers"] = func() placement.Algorithm { return &HardFilterRecentServers{} }
}
