// Package matchid generates sortable identifiers for matches.
package matchid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Prefix marks every match identifier.
const Prefix = "match_"

// Crockford base32, lower case.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

const encodedLen = 26

// RandSource supplies random bytes; tests inject a deterministic one.
type RandSource interface {
	Intn(n int) int
}

// Generator builds match IDs from a UUIDv7: a 48-bit millisecond timestamp
// followed by random bits, so IDs sort by creation time.
type Generator struct {
	rand RandSource
	now  func() time.Time
}

// NewGenerator returns a generator. A nil RandSource uses crypto/rand and a nil
// now uses time.Now.
func NewGenerator(randSource RandSource, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{rand: randSource, now: now}
}

// Generate returns an ID using crypto/rand and the wall clock.
func Generate() string {
	return NewGenerator(nil, nil).Generate()
}

// Generate returns a new match ID.
func (g *Generator) Generate() string {
	var uuid [16]byte

	ms := uint64(g.now().UnixMilli())
	for i := 0; i < 6; i++ {
		uuid[i] = byte(ms >> (40 - 8*i))
	}

	if g.rand != nil {
		for i := 6; i < 16; i++ {
			uuid[i] = byte(g.rand.Intn(256))
		}
	} else if _, err := rand.Read(uuid[6:]); err != nil {
		panic("matchid: reading random bytes: " + err.Error())
	}

	uuid[6] = (uuid[6] & 0x0f) | 0x70 // version 7
	uuid[8] = (uuid[8] & 0x3f) | 0x80 // RFC 4122 variant

	return Prefix + encode(uuid)
}

// encode writes the 128-bit value as 26 base32 digits, most significant first.
// The two spare high bits are zero, so the first digit is always 0-7.
func encode(uuid [16]byte) string {
	hi := binary.BigEndian.Uint64(uuid[:8])
	lo := binary.BigEndian.Uint64(uuid[8:])

	out := make([]byte, encodedLen)
	for i := encodedLen - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = (lo >> 5) | (hi << 59)
		hi >>= 5
	}
	return string(out)
}

// Validate checks that id is a well-formed match ID.
func Validate(id string) error {
	body, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return fmt.Errorf("match ID must start with %q", Prefix)
	}
	if len(body) != encodedLen {
		return fmt.Errorf("match ID must have %d characters after the prefix, got %d", encodedLen, len(body))
	}
	if body[0] > '7' {
		return fmt.Errorf("match ID first character must be 0-7, got %c", body[0])
	}
	for i, c := range body {
		if !strings.ContainsRune(alphabet, c) {
			return fmt.Errorf("invalid character %c at position %d", c, i)
		}
	}
	return nil
}
