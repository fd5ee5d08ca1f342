package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/tracewalk/tracewalk/internal/ir"
)

// Seed is the root of all randomness for one invocation. Seeds are
// arbitrary-precision integers so callers can paste back any seed a
// failing run printed, however it was produced.
type Seed struct {
	n *apd.BigInt
}

// NewSeed creates a seed from a machine integer.
func NewSeed(n int64) Seed {
	return Seed{n: apd.NewBigInt(n)}
}

// ParseSeed parses a decimal or 0x-prefixed hexadecimal seed.
func ParseSeed(s string) (Seed, error) {
	s = strings.TrimSpace(s)
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	n, ok := new(apd.BigInt).SetString(digits, base)
	if !ok {
		return Seed{}, fmt.Errorf("malformed seed %q", s)
	}
	return Seed{n: n}, nil
}

// GenerateSeed draws a fresh 128-bit seed from the operating system.
// The result must always be echoed back to the caller so the run can be
// reproduced.
func GenerateSeed() (Seed, error) {
	var buf [16]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return Seed{}, fmt.Errorf("generate seed: %w", err)
	}
	n := new(apd.BigInt).SetBytes(buf[:])
	return Seed{n: n}, nil
}

// String renders the seed in 0x-hexadecimal, the form run output prints.
func (s Seed) String() string {
	if s.n == nil {
		return "0x0"
	}
	if s.n.Sign() < 0 {
		return "-0x" + new(apd.BigInt).Abs(s.n).Text(16)
	}
	return "0x" + s.n.Text(16)
}

// Fork derives the independent sub-stream for (label, index). The
// derivation is a domain-separated hash of the seed, the label, and the
// index, so every (label, index) pair addresses the same stream on every
// platform and in any execution order.
func (s Seed) Fork(label string, index uint64) *Source {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)

	material := make([]byte, 0, len(label)+32)
	if s.n != nil {
		material = append(material, []byte(s.n.String())...)
	}
	material = append(material, 0x00)
	material = append(material, []byte(label)...)
	material = append(material, 0x00)
	material = append(material, idx[:]...)

	sum := ir.HashWithDomain(ir.DomainStream, material)
	hi := binary.BigEndian.Uint64(sum[0:8])
	lo := binary.BigEndian.Uint64(sum[8:16])
	return &Source{r: rand.New(rand.NewPCG(hi, lo))}
}

// Source is one forked pseudo-random stream. A Source is single-owner:
// exactly one attempt draws from it, in expression order, so replaying
// the same seed reproduces every draw bit-for-bit.
type Source struct {
	r *rand.Rand
}

// NextInt returns a uniform draw from [0, bound). bound must be
// positive; callers guard the empty case before drawing.
func (s *Source) NextInt(bound int) int {
	return s.r.IntN(bound)
}

// NextInt64 returns a uniform draw from [0, bound).
func (s *Source) NextInt64(bound int64) int64 {
	return s.r.Int64N(bound)
}

// Shuffle permutes n elements through the swap function.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Pick returns a uniformly chosen element of the non-empty slice.
func Pick[T any](s *Source, xs []T) T {
	return xs[s.r.IntN(len(xs))]
}
