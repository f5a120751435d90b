package xenv

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/casper-ee/execengine/key"
)

// prng is the deterministic per-execution URef address generator: seeded
// by deploy hash, it derives each fresh address from
// Blake2b(deployHash || counter), so two independent nodes executing the
// same deploy allocate byte-identical URef addresses (spec.md §3's
// lifecycle note).
type prng struct {
	seed    []byte
	counter uint64
}

func newPRNG(deployHash []byte) *prng {
	return &prng{seed: append([]byte(nil), deployHash...)}
}

func (p *prng) next() key.Address {
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], p.counter)
	p.counter++
	h := blake2b.Sum256(append(append([]byte(nil), p.seed...), counterBytes[:]...))
	var addr key.Address
	copy(addr[:], h[:])
	return addr
}
