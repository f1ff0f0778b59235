// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import (
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"time"

	placement "github.com/sapcc/node-placement"
)

// ScoreCurrentPlatform rewards a newer Live Image (spec §4.6). A
// server with no advertised Live Image is treated as the oldest
// possible, so it ranks last rather than erroring.
type ScoreCurrentPlatform struct {
	placement.BaseAlgorithm[struct{}]
}

func (*ScoreCurrentPlatform) Name() string         { return "score-current-platform" }
func (*ScoreCurrentPlatform) Kind() placement.Kind { return placement.KindScorer }

func (*ScoreCurrentPlatform) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	delta := placement.RankScore(servers, func(s *placement.Server) float64 {
		return platformSortKey(s.SysInfo.LiveImage)
	}, c.Defaults.WeightCurrentPlatform)
	return &placement.StepResult{ScoreDelta: delta}, nil
}

func platformSortKey(liveImage string) float64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, liveImage)
	if digits == "" {
		return -1
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return -1
	}
	return float64(n)
}

// ScoreNextReboot rewards a scheduled reboot farther in the future
// (spec §4.6). A server with no scheduled reboot is treated as
// rebooting at the farthest possible point, since it carries no known
// near-term disruption.
type ScoreNextReboot struct {
	placement.BaseAlgorithm[struct{}]
}

func (*ScoreNextReboot) Name() string         { return "score-next-reboot" }
func (*ScoreNextReboot) Kind() placement.Kind { return placement.KindScorer }

func (*ScoreNextReboot) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	delta := placement.RankScore(servers, func(s *placement.Server) float64 {
		if s.SysInfo.NextRebootTime.IsZero() {
			return math.MaxInt64 / 2
		}
		return float64(s.SysInfo.NextRebootTime.Unix())
	}, c.Defaults.WeightNextReboot)
	return &placement.StepResult{ScoreDelta: delta}, nil
}

// ScoreNumOwnerZones rewards servers hosting fewer VMs owned by the
// requesting owner, to spread one owner's workload across the fleet
// (spec §4.6).
type ScoreNumOwnerZones struct {
	placement.BaseAlgorithm[struct{}]
}

func (*ScoreNumOwnerZones) Name() string         { return "score-num-owner-zones" }
func (*ScoreNumOwnerZones) Kind() placement.Kind { return placement.KindScorer }

func (*ScoreNumOwnerZones) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	delta := placement.RankScore(servers, func(s *placement.Server) float64 {
		count := 0
		for _, vm := range s.VMs {
			if vm.OwnerUUID == c.VM.OwnerUUID {
				count++
			}
		}
		return -float64(count)
	}, c.Defaults.WeightNumOwnerZones)
	return &placement.StepResult{ScoreDelta: delta}, nil
}

// ScoreUnreservedRAM rewards servers with more unreserved RAM (spec §4.6).
type ScoreUnreservedRAM struct {
	placement.BaseAlgorithm[struct{}]
}

func (*ScoreUnreservedRAM) Name() string         { return "score-unreserved-ram" }
func (*ScoreUnreservedRAM) Kind() placement.Kind { return placement.KindScorer }

func (*ScoreUnreservedRAM) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	delta := placement.RankScore(servers, func(s *placement.Server) float64 {
		return s.Derived.UnreservedRAM
	}, c.Defaults.WeightUnreservedRAM)
	return &placement.StepResult{ScoreDelta: delta}, nil
}

// ScoreUnreservedDisk rewards servers with more unreserved disk (spec §4.6).
type ScoreUnreservedDisk struct {
	placement.BaseAlgorithm[struct{}]
}

func (*ScoreUnreservedDisk) Name() string         { return "score-unreserved-disk" }
func (*ScoreUnreservedDisk) Kind() placement.Kind { return placement.KindScorer }

func (*ScoreUnreservedDisk) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	delta := placement.RankScore(servers, func(s *placement.Server) float64 {
		return s.Derived.UnreservedDisk
	}, c.Defaults.WeightUnreservedDisk)
	return &placement.StepResult{ScoreDelta: delta}, nil
}

// ScoreUniformRandomOpts configures ScoreUniformRandom. Seed 0 means
// "derive a seed from wall-clock time at Init" (spec §9's "default is
// seeded from wall-clock time"); any nonzero value makes the
// contribution reproducible across calls, for tests.
type ScoreUniformRandomOpts struct {
	Seed int64 `json:"seed"`
}

// ScoreUniformRandom contributes a uniform-random, per-server score
// independent of ranking (spec §4.6). Unlike the other scorers it does
// not call RankScore: the value is a hash of (seed, server UUID)
// rather than a rank, so it stays deterministic and reproducible under
// a fixed seed regardless of which other servers are in the candidate
// set (spec §5, §8 property 1).
type ScoreUniformRandom struct {
	placement.BaseAlgorithm[ScoreUniformRandomOpts]
	resolvedSeed int64
}

func (*ScoreUniformRandom) Name() string         { return "score-uniform-random" }
func (*ScoreUniformRandom) Kind() placement.Kind { return placement.KindScorer }

func (a *ScoreUniformRandom) Init(opts placement.RawOpts) error {
	if err := a.BaseAlgorithm.Init(opts); err != nil {
		return err
	}
	a.resolvedSeed = a.Value.Seed
	if a.resolvedSeed == 0 {
		a.resolvedSeed = time.Now().UnixNano()
	}
	return nil
}

func (a *ScoreUniformRandom) Run(log placement.Logger, state *placement.State, servers []*placement.Server, c placement.Constraints) (*placement.StepResult, error) {
	weight := c.Defaults.WeightUniformRandom
	delta := make(map[string]float64, len(servers))
	for _, s := range servers {
		delta[s.UUID] = uniformRandomValue(a.resolvedSeed, s.UUID) * math.Abs(weight)
	}
	return &placement.StepResult{ScoreDelta: delta}, nil
}

func uniformRandomValue(seed int64, uuid string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatInt(seed, 10)))
	_, _ = h.Write([]byte(uuid))
	return float64(h.Sum64()) / float64(math.MaxUint64)
}

func init() {
	Index["score-current-platform"] = func() placement.Algorithm { return &ScoreCurrentPlatform{} }
	Index["score-next-reboot"] = func() placement.Algorithm { return &ScoreNextReboot{} }
	Index["score-num-owner-zones"] = func() placement.Algorithm { return &ScoreNumOwnerZones{} }
	Index["score-unreserved-ram"] = func() placement.Algorithm { return &ScoreUnreservedRAM{} }
	Index["score-unreserved-disk"] = func() placement.Algorithm { return &ScoreUnreservedDisk{} }
	Index["score-uniform-random"] = func() placement.Algorithm { return &ScoreUniformRandom{} }
}
