package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. Version suffix enables
// future algorithm migration.
const (
	DomainState  = "tracewalk/state/v1"
	DomainStream = "tracewalk/stream/v1"
)

// HashWithDomain computes SHA-256 with domain separation. Format:
// SHA256(domain + 0x00 + data). The null separator prevents domain/data
// boundary ambiguity.
func HashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// StateHash computes the content-addressed identity of a context. Two
// contexts hash equal exactly when they are deep-equal, which is what
// the trace keeper's diversity rule relies on.
func StateHash(c *Context) (string, error) {
	h := sha256.New()
	h.Write([]byte(DomainState))
	h.Write([]byte{0x00})
	for _, name := range c.Names() {
		v, _ := c.Get(name)
		canonical, err := MarshalCanonical(v)
		if err != nil {
			return "", fmt.Errorf("state hash: variable %q: %w", name, err)
		}
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(name)))
		h.Write(lenBuf[:])
		h.Write([]byte(name))
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(canonical)))
		h.Write(lenBuf[:])
		h.Write(canonical)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustStateHash is like StateHash but panics on error. Use only in tests
// or when the context is known to be hashable.
func MustStateHash(c *Context) string {
	h, err := StateHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
