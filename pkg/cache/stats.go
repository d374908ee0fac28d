package cache

// Stats holds cache counters.
type Stats struct {
	Entries        int    `json:"entries"`
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Sets           uint64 `json:"sets"`
	Evictions      uint64 `json:"evictions"`   // capacity evictions
	Expirations    uint64 `json:"expirations"` // TTL or session mismatch
	Bypassed       uint64 `json:"bypassed"`    // reads of keys filtered out by patterns
	PersistHits    uint64 `json:"persist_hits"`
	PersistErrors  uint64 `json:"persist_errors"`
	QuotaEvictions uint64 `json:"quota_evictions"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
