package cache

import "time"

// PolicyName selects an eviction strategy.
type PolicyName string

const (
	// PolicyLRU evicts the entry with the oldest last access.
	PolicyLRU PolicyName = "lru"
	// PolicyFIFO evicts the entry with the oldest insertion.
	PolicyFIFO PolicyName = "fifo"
	// PolicyLFU evicts the entry with the fewest accesses.
	PolicyLFU PolicyName = "lfu"
)

// EntryInfo is the metadata an eviction policy may inspect. It is a read-only
// view; entries themselves are owned exclusively by the cache store.
type EntryInfo struct {
	Key            string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int64
}

// Policy selects exactly one victim when the store is at capacity. Selection
// must be a pure function of the entries and deterministic: implementations
// break ties on the lexicographically lowest key so tests can predict the
// victim.
type Policy interface {
	Name() PolicyName
	Victim(entries []EntryInfo) (key string, ok bool)
}
