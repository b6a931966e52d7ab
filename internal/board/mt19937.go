package board

// MT19937 Mersenne Twister constants.
const (
	mtN         = 624
	mtM         = 397
	mtMatrixA   = 0x9908b0df
	mtUpperMask = 0x80000000
	mtLowerMask = 0x7fffffff
)

// Twister is a 32-bit Mersenne Twister seeded the same way as the reference
// client, so independently running players derive the same sample stream from
// a shared integer seed.
type Twister struct {
	mt  [mtN]uint32
	mti int
}

// NewTwister returns a generator seeded from an integer seed.
func NewTwister(seed int64) *Twister {
	t := &Twister{}
	t.Seed(seed)
	return t
}

// Seed reseeds the generator. The absolute value of the seed is split into
// little-endian 32-bit words and fed through init_by_array.
func (t *Twister) Seed(seed int64) {
	u := uint64(seed)
	if seed < 0 {
		u = uint64(-seed)
	}

	var key []uint32
	for u > 0 {
		key = append(key, uint32(u))
		u >>= 32
	}
	if len(key) == 0 {
		key = []uint32{0}
	}

	t.initByArray(key)
}

func (t *Twister) initGenrand(s uint32) {
	t.mt[0] = s
	for i := 1; i < mtN; i++ {
		prev := t.mt[i-1]
		t.mt[i] = 1812433253*(prev^(prev>>30)) + uint32(i)
	}
	t.mti = mtN
}

func (t *Twister) initByArray(key []uint32) {
	t.initGenrand(19650218)

	i, j := 1, 0
	k := max(mtN, len(key))
	for ; k > 0; k-- {
		prev := t.mt[i-1]
		t.mt[i] = (t.mt[i] ^ ((prev ^ (prev >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= mtN {
			t.mt[0] = t.mt[mtN-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}

	for k = mtN - 1; k > 0; k-- {
		prev := t.mt[i-1]
		t.mt[i] = (t.mt[i] ^ ((prev ^ (prev >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= mtN {
			t.mt[0] = t.mt[mtN-1]
			i = 1
		}
	}

	t.mt[0] = 0x80000000
}

// Uint32 returns the next tempered 32-bit output.
func (t *Twister) Uint32() uint32 {
	if t.mti >= mtN {
		t.generate()
	}

	y := t.mt[t.mti]
	t.mti++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

func (t *Twister) generate() {
	mag01 := [2]uint32{0, mtMatrixA}

	var kk int
	for ; kk < mtN-mtM; kk++ {
		y := (t.mt[kk] & mtUpperMask) | (t.mt[kk+1] & mtLowerMask)
		t.mt[kk] = t.mt[kk+mtM] ^ (y >> 1) ^ mag01[y&1]
	}
	for ; kk < mtN-1; kk++ {
		y := (t.mt[kk] & mtUpperMask) | (t.mt[kk+1] & mtLowerMask)
		t.mt[kk] = t.mt[kk+(mtM-mtN)] ^ (y >> 1) ^ mag01[y&1]
	}
	y := (t.mt[mtN-1] & mtUpperMask) | (t.mt[0] & mtLowerMask)
	t.mt[mtN-1] = t.mt[mtM-1] ^ (y >> 1) ^ mag01[y&1]

	t.mti = 0
}

// Float64 returns a uniform sample in [0, 1) with 53 bits of precision, built
// from two consecutive 32-bit outputs.
func (t *Twister) Float64() float64 {
	a := t.Uint32() >> 5
	b := t.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) * (1.0 / 9007199254740992.0)
}
