// Package det implements the seeded deterministic random source consumed by
// decision nodes. math/rand is never used on authoritative paths: its stream
// is not specified across Go versions, and reseeding from wall-clock would
// diverge replicas. The generator here is splitmix64, whose output sequence
// is fully pinned by its seed.
package det

// Source is a splitmix64 stream. The zero value is a valid stream seeded
// with zero. Source is not safe for concurrent use; the scheduler fixes the
// consumption order across agents.
type Source struct {
	state uint64
}

// NewSource returns a stream seeded with seed.
func NewSource(seed uint64) *Source {
	return &Source{state: seed}
}

// Seed resets the stream.
func (s *Source) Seed(seed uint64) {
	s.state = seed
}

// Uint64 advances the stream and returns the next value.
func (s *Source) Uint64() uint64 {
	s.state += 0x9e3779b97f4a7c15
	z := s.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n). n <= 0 returns 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(s.Uint64() % uint64(n))
}

// NextInRange returns a value in [lo, hi). hi <= lo returns lo.
func (s *Source) NextInRange(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + int64(s.Uint64()%uint64(hi-lo))
}

// Shuffle permutes n elements via Fisher-Yates, calling swap for each
// exchange. The permutation is a pure function of the stream state.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

// Derive folds a tick number and an agent handle into a stream seed.
// Randomized node ordering (SelectorRandom) reseeds from this every tick so
// the permutation depends only on (seed, tick, agent) and never on how many
// values other agents consumed.
func Derive(seed, tick, agent uint64) uint64 {
	x := seed ^ (tick * 0x9e3779b97f4a7c15) ^ (agent * 0xc2b2ae3d27d4eb4f)
	x = (x ^ (x >> 33)) * 0xff51afd7ed558ccd
	x = (x ^ (x >> 33)) * 0xc4ceb9fe1a85ec53
	return x ^ (x >> 33)
}
