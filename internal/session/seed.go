package session

import (
	rand "math/rand/v2"
	"sync"
)

// MaxSeed is the largest board seed the coordinator issues. Seeds start at 1.
const MaxSeed = 1_000_000

const goldenRatio64 = 0x9e3779b97f4a7c15

// SeedSource issues board seeds for new sessions.
type SeedSource interface {
	NextSeed() int64
}

// RandomSeeds draws seeds uniformly from [1, MaxSeed]. It is safe for
// concurrent use.
type RandomSeeds struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomSeeds returns a SeedSource whose sequence is fully determined by
// seed, so a server started with the same value hands out the same boards.
func NewRandomSeeds(seed int64) *RandomSeeds {
	u := uint64(seed)
	return &RandomSeeds{rng: rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))}
}

func (r *RandomSeeds) NextSeed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return 1 + r.rng.Int64N(MaxSeed)
}

// FixedSeeds replays a list of seeds in order, then repeats the last one.
type FixedSeeds struct {
	mu    sync.Mutex
	seeds []int64
	next  int
}

// NewFixedSeeds returns a SeedSource that issues seeds in order.
func NewFixedSeeds(seeds ...int64) *FixedSeeds {
	return &FixedSeeds{seeds: seeds}
}

func (f *FixedSeeds) NextSeed() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeds) == 0 {
		return 1
	}
	seed := f.seeds[min(f.next, len(f.seeds)-1)]
	f.next++
	return seed
}

// splitmix64 finaliser
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
