// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"math"
	"sort"

	placement "github.com/sapcc/node-placement"
)

// SoftFilterLocalityHints prefers near servers and avoids far ones,
// non-strictly: it proposes a restricted subset and falls back to the
// unmodified input if the proposal would be empty (spec §4.5, §4.8).
type SoftFilterLocalityHints struct {
	placement.BaseAlgorithm[struct{}]
}

func (*SoftFilterLocalityHints) Name() string         { return "soft-filter-locality-hints" }
func (*SoftFilterLocalityHints) Kind() placement.Kind { return placement.KindSoftFilter }

func (*SoftFilterLocalityHints) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	if len(c.SoftNearServers) == 0 && len(c.SoftFarServers) == 0 {
		return &placement.StepResult{Servers: servers}, nil
	}

	avoidingFar := make([]*placement.Server, 0, len(servers))
	for _, s := range servers {
		if _, isFar := c.SoftFarServers[s.UUID]; !isFar {
			avoidingFar = append(avoidingFar, s)
		}
	}
	if len(avoidingFar) == 0 {
		// Dropping every far server would empty the set; fall back (spec §4.5).
		avoidingFar = servers
	}

	if len(c.SoftNearServers) == 0 {
		return &placement.StepResult{Servers: avoidingFar}, nil
	}
	preferred := make([]*placement.Server, 0, len(avoidingFar))
	for _, s := range avoidingFar {
		if _, isNear := c.SoftNearServers[s.UUID]; isNear {
			preferred = append(preferred, s)
		}
	}
	if len(preferred) > 0 {
		return &placement.StepResult{Servers: preferred}, nil
	}
	return &placement.StepResult{Servers: avoidingFar}, nil
}

// SoftFilterRecentServers removes up to 25% of the candidate set whose
// UUIDs are recent, dropping the most recently used first, falling
// back to the unmodified input if the proposal would be empty (spec
// §4.5, §4.7, §8 property 7, scenario S6).
type SoftFilterRecentServers struct {
	placement.BaseAlgorithm[struct{}]
}

func (*SoftFilterRecentServers) Name() string         { return "soft-filter-recent-servers" }
func (*SoftFilterRecentServers) Kind() placement.Kind { return placement.KindSoftFilter }

func (*SoftFilterRecentServers) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	recent := recentServersFromState(state)
	if recent == nil {
		return &placement.StepResult{Servers: servers}, nil
	}
	lastUsed := recent.Snapshot()

	type candidate struct {
		server *placement.Server
		used   bool
		at     int64
	}
	candidates := make([]candidate, len(servers))
	for i, s := range servers {
		ts, used := lastUsed[s.UUID]
		candidates[i] = candidate{server: s, used: used, at: ts.UnixNano()}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].at > candidates[j].at // most recent first
	})

	maxDrop := int(math.Ceil(0.25 * float64(len(servers))))
	dropped := 0
	kept := make([]*placement.Server, 0, len(servers))
	for _, cand := range candidates {
		if cand.used && dropped < maxDrop {
			dropped++
			continue
		}
		kept = append(kept, cand.server)
	}
	if len(kept) == 0 {
		return &placement.StepResult{Servers: servers}, nil
	}
	return &placement.StepResult{Servers: kept}, nil
}

// Post records the chosen server into the recent-server memory (spec
// §4.7, §4.11 step 8), mirroring hard-filter-recent-servers' Post.
func (*SoftFilterRecentServers) Post(log placement.Logger, state *placement.State, chosen *placement.Server) {
	recordRecentServer(state, chosen)
}

func init() {
	Index["soft-filter-locality-hints"] = func() placement.Algorithm { return &SoftFilterLocalityHints{} }
	Index["soft-filter-recent-servers"] = func() placement.Algorithm { return &SoftFilterRecentServers{} }
}
