package feature

import "hash/fnv"

// BucketCount is the size of the rollout bucket space.
const BucketCount = 100

// Bucket maps (flagKey, userID) to a stable bucket in [0, 100) using the
// 32-bit FNV-1a hash of flagKey + ":" + userID. The flag key is part of the
// input so one user lands independently across flags.
func Bucket(flagKey, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(flagKey))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % BucketCount)
}

// IsIncluded reports whether bucket falls inside a rollout of percentage.
// 100 and above always include without consulting the bucket; 0 and below
// never include.
func IsIncluded(bucket, percentage int) bool {
	switch {
	case percentage >= BucketCount:
		return true
	case percentage <= 0:
		return false
	default:
		return bucket < percentage
	}
}

// SelectVariant partitions the bucket space by cumulative weight in
// declaration order and returns the variant owning bucket.
//
// Negative weights count as zero. When the weights sum to less than 100
// the last positively weighted variant absorbs the remainder. When they sum
// to more than 100, variants whose range starts at or beyond 100 are never
// selected. Without any positive weight no variant is returned.
func SelectVariant(variants []Variant, bucket int) (Variant, bool) {
	last := -1
	for i, v := range variants {
		if v.Weight > 0 {
			last = i
		}
	}
	if last < 0 {
		return Variant{}, false
	}

	upper := 0
	for i, v := range variants {
		if v.Weight <= 0 {
			continue
		}
		upper += v.Weight
		if bucket < upper || i == last {
			return v, true
		}
	}
	return Variant{}, false
}
