package memory

import (
	"github.com/felixgeelhaar/datakit/domain/cache"
)

// lruPolicy evicts the entry with the oldest last access.
type lruPolicy struct{}

// LRU returns the least-recently-used eviction policy.
func LRU() cache.Policy { return lruPolicy{} }

func (lruPolicy) Name() cache.PolicyName { return cache.PolicyLRU }

func (lruPolicy) Victim(entries []cache.EntryInfo) (string, bool) {
	return selectVictim(entries, func(candidate, current cache.EntryInfo) bool {
		if !candidate.LastAccessedAt.Equal(current.LastAccessedAt) {
			return candidate.LastAccessedAt.Before(current.LastAccessedAt)
		}
		return candidate.Key < current.Key
	})
}

// fifoPolicy evicts the entry with the oldest insertion.
type fifoPolicy struct{}

// FIFO returns the first-in-first-out eviction policy.
func FIFO() cache.Policy { return fifoPolicy{} }

func (fifoPolicy) Name() cache.PolicyName { return cache.PolicyFIFO }

func (fifoPolicy) Victim(entries []cache.EntryInfo) (string, bool) {
	return selectVictim(entries, func(candidate, current cache.EntryInfo) bool {
		if !candidate.CreatedAt.Equal(current.CreatedAt) {
			return candidate.CreatedAt.Before(current.CreatedAt)
		}
		return candidate.Key < current.Key
	})
}

// lfuPolicy evicts the entry with the fewest accesses.
type lfuPolicy struct{}

// LFU returns the least-frequently-used eviction policy.
func LFU() cache.Policy { return lfuPolicy{} }

func (lfuPolicy) Name() cache.PolicyName { return cache.PolicyLFU }

func (lfuPolicy) Victim(entries []cache.EntryInfo) (string, bool) {
	return selectVictim(entries, func(candidate, current cache.EntryInfo) bool {
		if candidate.AccessCount != current.AccessCount {
			return candidate.AccessCount < current.AccessCount
		}
		return candidate.Key < current.Key
	})
}

// PolicyByName selects an eviction policy from its string flag.
func PolicyByName(name cache.PolicyName) (cache.Policy, error) {
	switch name {
	case cache.PolicyLRU:
		return LRU(), nil
	case cache.PolicyFIFO:
		return FIFO(), nil
	case cache.PolicyLFU:
		return LFU(), nil
	default:
		return nil, cache.ErrUnknownPolicy
	}
}

// selectVictim returns the entry that orders lowest under less. Ties are
// already resolved by less via the key comparison, so selection is total.
func selectVictim(entries []cache.EntryInfo, less func(candidate, current cache.EntryInfo) bool) (string, bool) {
	if len(entries) == 0 {
		return "", false
	}

	victim := entries[0]
	for _, e := range entries[1:] {
		if less(e, victim) {
			victim = e
		}
	}
	return victim.Key, true
}
