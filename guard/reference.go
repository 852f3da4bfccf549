// ABOUTME: Reference policy options and the default guard policy built from them
// ABOUTME: Also derives the enumerator options that control element traversal

package guard

import "github.com/prateek/heapmeter/object"

// ReferencePolicy holds the reference-following options of a measurement
type ReferencePolicy struct {
	// FollowStatics measures Statics and the known singletons
	FollowStatics bool `yaml:"followStatics" json:"followStatics"`
	// FollowArrays follows slice, array, map and channel elements
	FollowArrays bool `yaml:"followArrays" json:"followArrays"`
	// FollowSpecial follows weak references to their referents
	FollowSpecial bool `yaml:"followSpecial" json:"followSpecial"`
	// ExcludedTypePrefixes form the namespace boundary
	ExcludedTypePrefixes []string `yaml:"excludedTypePrefixes" json:"excludedTypePrefixes"`
	// ExcludedFields are never followed
	ExcludedFields []FieldRef `yaml:"excludedFields" json:"excludedFields"`
	// SkipBoxedScalars excludes numbers and booleans held in interfaces
	SkipBoxedScalars bool `yaml:"skipBoxedScalars" json:"skipBoxedScalars"`
	// Statics are additional shared objects excluded unless FollowStatics
	Statics []any `yaml:"-" json:"-"`
}

// DefaultReferencePolicy follows fields and elements but no statics or
// weak references.
func DefaultReferencePolicy() ReferencePolicy {
	return ReferencePolicy{FollowArrays: true}
}

// Policy builds the guard policy for r
func (r ReferencePolicy) Policy(extra ...Guard) *Policy {
	guards := []Guard{TypeMetadata{}, Unmetered{}}
	if len(r.ExcludedTypePrefixes) > 0 {
		guards = append(guards, Boundary{Prefixes: r.ExcludedTypePrefixes})
	}
	if !r.FollowSpecial {
		guards = append(guards, WeakReferents{})
	}
	if len(r.ExcludedFields) > 0 {
		guards = append(guards, ExcludedFields{Fields: r.ExcludedFields})
	}
	if !r.FollowStatics {
		guards = append(guards, NewStatics(append(KnownSingletons(), r.Statics...)...))
	}
	if r.SkipBoxedScalars {
		guards = append(guards, BoxedScalars{})
	}
	guards = append(guards, extra...)
	log.Debug("reference policy built", "guards", len(guards), "followArrays", r.FollowArrays,
		"followSpecial", r.FollowSpecial, "followStatics", r.FollowStatics)
	return NewPolicy(guards...)
}

// EnumeratorOptions returns the enumerator options implied by r
func (r ReferencePolicy) EnumeratorOptions() object.Options {
	return object.Options{Elements: r.FollowArrays, Special: r.FollowSpecial}
}
