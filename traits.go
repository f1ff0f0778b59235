// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package placement

// MatchTrait implements the five match rules of spec §4.4's
// hard-filter-traits, for a single (name, required value) pair against
// a server's trait map. It is grounded on the teacher's
// FilterHasRequestedTraits (internal/scheduling/nova/plugins/filters),
// generalized from Nova's required/forbidden boolean convention to the
// spec's richer Bool|Str|StrList trait values.
func MatchTrait(name string, required TraitValue, serverTraits Traits) bool {
	serverVal, present := serverTraits[name]
	if !present {
		// Missing trait is equivalent to boolean false, for boolean
		// requirements only (spec §4.4).
		return required.Bool != nil && !*required.Bool
	}
	switch {
	case required.Bool != nil:
		switch {
		case serverVal.Bool != nil:
			return *required.Bool == *serverVal.Bool
		case serverVal.Str != nil:
			return boolString(*required.Bool) == *serverVal.Str
		default:
			return false
		}
	case required.Str != nil:
		return matchScalarAgainst(*required.Str, serverVal)
	case required.StrList != nil:
		return matchListAgainst(required.StrList, serverVal)
	default:
		return false
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// matchScalarAgainst matches a scalar required value against a server
// value that may itself be scalar or a list (scalar-vs-scalar: equal;
// scalar-vs-list: scalar is a member, spec §4.4).
func matchScalarAgainst(required string, serverVal TraitValue) bool {
	switch {
	case serverVal.Str != nil:
		return required == *serverVal.Str
	case serverVal.StrList != nil:
		for _, v := range serverVal.StrList {
			if v == required {
				return true
			}
		}
		return false
	case serverVal.Bool != nil:
		return required == boolString(*serverVal.Bool)
	default:
		return false
	}
}

// matchListAgainst matches a list-typed required value against a
// scalar or list server value (list-vs-scalar: scalar is a member;
// list-vs-list: non-empty intersection; spec §4.4 and §8 property 4 --
// the outcome is symmetric under swapping which side holds the list).
func matchListAgainst(required []string, serverVal TraitValue) bool {
	switch {
	case serverVal.Str != nil:
		for _, v := range required {
			if v == *serverVal.Str {
				return true
			}
		}
		return false
	case serverVal.StrList != nil:
		set := make(map[string]struct{}, len(serverVal.StrList))
		for _, v := range serverVal.StrList {
			set[v] = struct{}{}
		}
		for _, v := range required {
			if _, ok := set[v]; ok {
				return true
			}
		}
		return false
	case serverVal.Bool != nil:
		s := boolString(*serverVal.Bool)
		for _, v := range required {
			if v == s {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// MatchAllTraits reports whether server satisfies every required trait,
// and if not, a human-readable reason naming the first failing trait.
func MatchAllTraits(required Traits, serverTraits Traits) (bool, string) {
	for name, val := range required {
		if !MatchTrait(name, val, serverTraits) {
			return false, "missing or mismatched trait: " + name
		}
	}
	return true, ""
}

// UnionTraits merges VM, image, and package traits with VM taking
// precedence over image, and image over package (spec §4.3).
func UnionTraits(vm, image, pkg Traits) Traits {
	out := make(Traits, len(vm)+len(image)+len(pkg))
	for k, v := range pkg {
		out[k] = v
	}
	for k, v := range image {
		out[k] = v
	}
	for k, v := range vm {
		out[k] = v
	}
	return out
}
