// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

import (
	"regexp"
	"strings"
)

// ResolveLocality implements spec §4.8: scans every server's hosted
// VMs against each of the VM's affinity rules, plus the VM's own
// Locality.Near/Far hints (modeled as synthetic "instance" affinity
// rules, exact-match, whose softness comes from Locality.Strict),
// projecting matched VMs onto the servers that host them. "Affinity
// runs before locality hints and contributes to the same locality
// structure" (spec §4.8), so both sources feed the same four sets.
//
// Grounded on the shape of the teacher's AntiAffinityNoisyProjectsStep
// (internal/scheduler/plugins/vmware): scan VMs across hosts, group by
// a key, turn the grouping into a host set. Here the grouping key is
// "matched this affinity rule" rather than "shares a project_id".
func ResolveLocality(vm VM, servers []*Server) (hardNear, hardFar, softNear, softFar map[string]struct{}) {
	hardNear, hardFar = map[string]struct{}{}, map[string]struct{}{}
	softNear, softFar = map[string]struct{}{}, map[string]struct{}{}

	rules := make([]AffinityRule, 0, len(vm.Affinity)+len(vm.Locality.Near)+len(vm.Locality.Far))
	rules = append(rules, vm.Affinity...)
	for _, uuid := range vm.Locality.Near {
		rules = append(rules, AffinityRule{Key: "instance", Operator: AffinityEquals, Value: uuid, ValueType: AffinityValueExact, IsSoft: !vm.Locality.Strict})
	}
	for _, uuid := range vm.Locality.Far {
		rules = append(rules, AffinityRule{Key: "instance", Operator: AffinityNotEquals, Value: uuid, ValueType: AffinityValueExact, IsSoft: !vm.Locality.Strict})
	}

	for _, rule := range rules {
		matchedServers := matchAffinityRule(rule, servers)
		near, far := softNear, softFar
		if !rule.IsSoft {
			near, far = hardNear, hardFar
		}
		dest := near
		if rule.Operator == AffinityNotEquals {
			dest = far
		}
		for uuid := range matchedServers {
			dest[uuid] = struct{}{}
		}
	}
	return hardNear, hardFar, softNear, softFar
}

// matchAffinityRule returns the set of server UUIDs hosting at least
// one VM that matches rule.
func matchAffinityRule(rule AffinityRule, servers []*Server) map[string]struct{} {
	matched := map[string]struct{}{}
	instanceKey := rule.Key == "instance" || rule.Key == "container"
	for _, srv := range servers {
		for vmUUID, hosted := range srv.VMs {
			var ok bool
			if instanceKey {
				ok = matchInstanceValue(rule, vmUUID, hosted)
			} else {
				ok = matchTagValue(rule, hosted)
			}
			if ok {
				matched[srv.UUID] = struct{}{}
				break
			}
		}
	}
	return matched
}

// matchInstanceValue matches rule.Value against a hosted VM's alias,
// UUID, or Docker-ID prefix (spec §4.8).
func matchInstanceValue(rule AffinityRule, vmUUID string, hosted HostedVM) bool {
	candidates := []string{vmUUID, hosted.Alias}
	switch rule.ValueType {
	case AffinityValueExact:
		if rule.Value == vmUUID || rule.Value == hosted.Alias {
			return true
		}
		// Unambiguous Docker-ID prefix.
		return hosted.DockerID != "" && strings.HasPrefix(hosted.DockerID, rule.Value) && len(rule.Value) >= 12
	case AffinityValueGlob:
		for _, c := range candidates {
			if globMatch(rule.Value, c) {
				return true
			}
		}
		return false
	case AffinityValueRegex:
		re, err := regexp.Compile(rule.Value)
		if err != nil {
			return false
		}
		for _, c := range candidates {
			if re.MatchString(c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// matchTagValue matches rule.Value against the string form of hosted's
// tag named rule.Key.
func matchTagValue(rule AffinityRule, hosted HostedVM) bool {
	tagVal, ok := hosted.Tags[rule.Key]
	if !ok {
		return false
	}
	switch rule.ValueType {
	case AffinityValueExact:
		return tagVal == rule.Value
	case AffinityValueGlob:
		return globMatch(rule.Value, tagVal)
	case AffinityValueRegex:
		re, err := regexp.Compile(rule.Value)
		if err != nil {
			return false
		}
		return re.MatchString(tagVal)
	default:
		return false
	}
}

// globMatch implements the small subset of shell-glob used by affinity
// rules: '*' matches any run of characters, '?' matches exactly one.
// Translated to an anchored regexp rather than hand-rolled backtracking.
func globMatch(pattern, s string) bool {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(s)
}
