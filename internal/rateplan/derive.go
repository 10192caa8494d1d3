package rateplan

import (
	"fmt"

	"github.com/bllfield/intelliwatt-costengine/internal/bucket"
)

// RequiredBucket pairs a bucket key with a display label for the persisted
// requiredBucketKeys column and admin tooling.
type RequiredBucket struct {
	Key   bucket.Key `json:"key"`
	Label string     `json:"label"`
}

// RequiredBuckets derives the minimal ordered set of usage buckets needed
// to price the structure. Over-requesting wastes usage-store reads;
// under-requesting produces silent zeros downstream, so this is the single
// source of truth for what the builder must load.
//
// The all-hours total is always first: every shape consumes it, and the
// time-of-use evaluator uses it as the reconciliation denominator.
func RequiredBuckets(s *Structure) ([]RequiredBucket, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	keys := []bucket.Key{bucket.AllTotal}
	switch s.Type {
	case RateFixed, RateVariable, RateIndexed:
		// Flat and current-bill-only shapes price off the total alone.
		// Tier, credit, and minimum augmentations also consume only the
		// total, so they never extend this set.
	case RateTimeOfUse:
		for _, p := range s.Periods {
			keys = append(keys, p.Bucket())
		}
	default:
		return nil, fmt.Errorf("rateplan: unknown rate type %q", s.Type)
	}

	keys = bucket.Dedupe(keys)
	out := make([]RequiredBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, RequiredBucket{Key: k, Label: k.Label()})
	}
	return out, nil
}

// RequiredKeys is RequiredBuckets without labels.
func RequiredKeys(s *Structure) ([]bucket.Key, error) {
	rbs, err := RequiredBuckets(s)
	if err != nil {
		return nil, err
	}
	keys := make([]bucket.Key, 0, len(rbs))
	for _, rb := range rbs {
		keys = append(keys, rb.Key)
	}
	return keys, nil
}
