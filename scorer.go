// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"math"
	"sort"
)

// RankScore implements spec §4.6's scoring primitive: rank the
// surviving servers along one dimension, normalize the rank to
// [0,1], and scale by |weight|. A negative weight inverts the
// ranking (the formerly-largest key becomes the smallest) while the
// contribution stays non-negative, per spec §4.6 and §8 property 1
// (determinism holds regardless of sign).
//
// Grounded on the teacher's scoring primitive, lib.MinMaxScale, but
// rank-based rather than min-max-scaled, since spec §4.6 asks for
// "ranking... scaled by weight" rather than continuous normalization;
// per-dimension scorers (score-unreserved-ram, etc.) are each a thin
// Algorithm layered on top of RankScore, mirroring how the teacher
// layers AvoidOverloadedHosts{CPU,Memory}Step on shared MinMaxScale.
func RankScore(servers []*Server, key func(*Server) float64, weight float64) map[string]float64 {
	out := make(map[string]float64, len(servers))
	if weight == 0 || len(servers) == 0 {
		for _, s := range servers {
			out[s.UUID] = 0
		}
		return out
	}
	type rankable struct {
		uuid string
		val  float64
	}
	ranked := make([]rankable, len(servers))
	for i, s := range servers {
		ranked[i] = rankable{uuid: s.UUID, val: key(s)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].val != ranked[j].val {
			return ranked[i].val < ranked[j].val
		}
		return ranked[i].uuid < ranked[j].uuid
	})

	n := len(ranked)
	invert := weight < 0
	absWeight := math.Abs(weight)
	for rank, entry := range ranked {
		normalized := 0.0
		if n > 1 {
			normalized = float64(rank) / float64(n-1)
		}
		if invert {
			normalized = 1 - normalized
		}
		out[entry.uuid] = normalized * absWeight
	}
	return out
}
