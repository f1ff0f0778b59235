// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package algorithms

import placement "github.com/sapcc/node-placement"

// requestedRAM returns the RAM the candidate VM needs, in MiB (spec §3/§4.4).
func requestedRAM(c placement.Constraints) float64 { return c.VM.RAM }

// requestedCPU returns the requested CPU cap, in percent. A VM with no
// cpu_cap set (0) requests nothing on this dimension.
func requestedCPU(c placement.Constraints) float64 { return c.VM.CPUCap }

// requestedDiskMiB returns the disk the candidate VM needs: its own
// quota if set, else the package's quota, plus the image payload that
// has to land on disk regardless of quota. Spec §3 documents vm.quota
// and package.quota as the two sources of a requested disk size but
// does not give their precedence explicitly; VM overriding package
// mirrors the same precedence used everywhere else in §4.3.
func requestedDiskMiB(c placement.Constraints) float64 {
	quota := c.VM.Quota
	if quota <= 0 {
		quota = c.Package.Quota
	}
	return quota + c.Image.ImageSize
}

func reject(servers []*placement.Server, keep func(*placement.Server) (bool, string)) *placement.StepResult {
	kept := make([]*placement.Server, 0, len(servers))
	reasons := map[string]string{}
	for _, s := range servers {
		ok, reason := keep(s)
		if ok {
			kept = append(kept, s)
		} else {
			reasons[s.UUID] = reason
		}
	}
	return &placement.StepResult{Servers: kept, Reasons: reasons}
}
