// Package cry wraps the single hash primitive the engine uses for
// content addressing and deploy identity: Blake2b-256, the same
// algorithm trie and key already build keys and node references from.
package cry

import "golang.org/x/crypto/blake2b"

// Hash is a 32-byte Blake2b-256 digest.
type Hash [32]byte

// Sum256 hashes data with Blake2b-256.
func Sum256(data ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Bytes returns the digest's bytes.
func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 2+len(h)*2)
	buf[0], buf[1] = '0', 'x'
	for i, b := range h {
		buf[2+i*2] = hextable[b>>4]
		buf[3+i*2] = hextable[b&0x0f]
	}
	return string(buf)
}
