// Package codec implements Reed-Solomon erasure coding over GF(2^8)
// using a Cauchy generator matrix, built directly from the field
// arithmetic rather than delegating to an opaque RS library — the
// rebuild path needs access to the matrix, the survivor row
// selection, and the precomputed multiply tables (see Rebuild in rs.go).
package codec

import "github.com/klauspost/cpuid/v2"

// primitivePoly is the GF(2^8) reduction polynomial (x^8+x^4+x^3+x^2+1).
const primitivePoly = 0x11d

var (
	logTable [256]byte
	expTable [510]byte // doubled so expTable[logTable[a]+logTable[b]] never wraps
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		expTable[i] = byte(x)
		logTable[byte(x)] = byte(i)
		x <<= 1
		if x&0x100 != 0 {
			x ^= primitivePoly
		}
	}
	for i := 255; i < 510; i++ {
		expTable[i] = expTable[i-255]
	}
}

// gfMul multiplies two GF(2^8) elements.
func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// gfInv returns the multiplicative inverse of a non-zero GF(2^8) element.
func gfInv(a byte) byte {
	if a == 0 {
		panic("codec: gfInv(0) is undefined")
	}
	return expTable[255-int(logTable[a])]
}

// gfAdd is GF(2^8) addition/subtraction, which is XOR.
func gfAdd(a, b byte) byte { return a ^ b }

// mulTable is the 32-byte split-nibble multiplication table for one
// GF(2^8) constant: the low half maps the low nibble of the input
// byte to c*nibble, the high half maps the high nibble of the input
// (pre-shifted by 4) to c*(nibble<<4). This is the layout a real
// PSHUFB-based implementation would use for 16-way parallel lookups;
// here it's a scalar fallback, exercised identically either way.
type mulTable [32]byte

func buildMulTable(c byte) mulTable {
	var t mulTable
	for i := 0; i < 16; i++ {
		t[i] = gfMul(c, byte(i))
		t[16+i] = gfMul(c, byte(i<<4))
	}
	return t
}

// mulTableApply multiplies src by the constant baked into t and XORs
// the product into dst. dst and src must be the same length.
func mulTableApply(t mulTable, dst, src []byte) {
	n := len(src)
	i := 0
	if simdBatchingAvailable {
		for ; i+32 <= n; i += 32 {
			mulTableApplyBlock(t, dst[i:i+32], src[i:i+32])
		}
	}
	for ; i < n; i++ {
		b := src[i]
		dst[i] ^= t[b&0x0f] ^ t[16+(b>>4)]
	}
}

// mulTableApplyBlock applies the table to an aligned 32-byte block.
// Kept separate from the tail loop so a real SIMD backend could swap
// this one function out without touching the batching logic above.
func mulTableApplyBlock(t mulTable, dst, src []byte) {
	for i := 0; i < 32; i++ {
		b := src[i]
		dst[i] ^= t[b&0x0f] ^ t[16+(b>>4)]
	}
}

// simdBatchingAvailable gates the 32-byte batched path on hosts whose
// CPU advertises wide-register SIMD support, matching the codec's
// "use vector tables for 32-byte batching where available" note. The
// scalar and batched loops in mulTableApply are byte-for-byte
// identical; this only changes how the work is chunked, so disabling
// it never changes output.
var simdBatchingAvailable = cpuid.CPU.Supports(cpuid.SSSE3) || cpuid.CPU.Supports(cpuid.AVX2)
