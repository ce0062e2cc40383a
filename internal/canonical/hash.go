package canonical

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the size of every digest produced by this package.
const DigestSize = blake2b.Size256

// Digest is a 32-byte BLAKE2b-256 hash.
type Digest [DigestSize]byte

// Hex returns the lowercase hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first eight hex characters, for logs and tables.
func (d Digest) Short() string {
	return d.Hex()[:8]
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// CanonicalValue renders the digest as a hex string.
func (d Digest) CanonicalValue() any {
	return d.Hex()
}

// ParseDigest decodes a 64-character hex string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	if len(b) != DigestSize {
		return d, hex.ErrLength
	}
	copy(d[:], b)
	return d, nil
}

// Hasher accumulates domain-separated input.
// Format: BLAKE2b-256(domain + 0x00 + data...). The null separator prevents
// domain/data boundary ambiguity.
type Hasher struct {
	buf []byte
}

// NewHasher starts a hash in the given domain.
func NewHasher(domain string) *Hasher {
	h := &Hasher{buf: make([]byte, 0, 128)}
	h.buf = append(h.buf, domain...)
	h.buf = append(h.buf, 0x00)
	return h
}

// Write appends raw bytes.
func (h *Hasher) Write(b []byte) *Hasher {
	h.buf = append(h.buf, b...)
	return h
}

// WriteUint64 appends v as 8 little-endian bytes.
func (h *Hasher) WriteUint64(v uint64) *Hasher {
	h.buf = binary.LittleEndian.AppendUint64(h.buf, v)
	return h
}

// WriteDigest appends a digest.
func (h *Hasher) WriteDigest(d Digest) *Hasher {
	h.buf = append(h.buf, d[:]...)
	return h
}

// WriteString appends a length-prefixed string.
func (h *Hasher) WriteString(s string) *Hasher {
	h.WriteUint64(uint64(len(s)))
	h.buf = append(h.buf, s...)
	return h
}

// Sum returns the digest of everything written so far.
func (h *Hasher) Sum() Digest {
	return blake2b.Sum256(h.buf)
}

// Hash computes BLAKE2b-256 with domain separation over data.
func Hash(domain string, data []byte) Digest {
	return NewHasher(domain).Write(data).Sum()
}

// Merge hashes two digests in a domain; the Merkle node function.
func Merge(domain string, left, right Digest) Digest {
	return NewHasher(domain).WriteDigest(left).WriteDigest(right).Sum()
}
