package codec

import (
	"fmt"
	"sort"
)

// Codec is a Reed-Solomon (k, p) erasure codec over GF(2^8): k source
// chunks produce p parity chunks such that any p of the k+p chunks
// can be lost and the rest recovered.
type Codec struct {
	k, p  int
	e     matrix       // (k+p) x k Cauchy generator matrix
	gTbls [][]mulTable // p x k: per-parity-row, per-data-column multiply tables
}

// NewCodec builds the generator matrix and the precomputed multiply
// tables ("g_tbls" in spec terms) for a (k data, p parity) codec.
func NewCodec(k, p int) (*Codec, error) {
	if k <= 0 {
		return nil, fmt.Errorf("codec: dataCnt must be > 0, got %d", k)
	}
	if p <= 0 {
		return nil, fmt.Errorf("codec: parityCnt must be > 0, got %d", p)
	}
	e := buildCauchyMatrix(k, p)
	return &Codec{
		k:     k,
		p:     p,
		e:     e,
		gTbls: buildGTbls(e[k:], k),
	}, nil
}

func buildGTbls(parityRows matrix, k int) [][]mulTable {
	tbls := make([][]mulTable, len(parityRows))
	for i, row := range parityRows {
		tbls[i] = make([]mulTable, k)
		for j := 0; j < k; j++ {
			tbls[i][j] = buildMulTable(row[j])
		}
	}
	return tbls
}

// DataShards returns k.
func (c *Codec) DataShards() int { return c.k }

// ParityShards returns p.
func (c *Codec) ParityShards() int { return c.p }

// Encode computes the p parity chunks from k source chunks using the
// precomputed g_tbls, XOR-accumulating each data chunk's contribution
// into the output parity chunks (a dense matrix-vector product over
// GF(2^8), batched 32 bytes at a time where the host supports it).
func (c *Codec) Encode(data [][]byte, parityOut [][]byte) error {
	if len(data) != c.k {
		return fmt.Errorf("codec: Encode expects %d data chunks, got %d", c.k, len(data))
	}
	if len(parityOut) != c.p {
		return fmt.Errorf("codec: Encode expects %d parity chunks, got %d", c.p, len(parityOut))
	}
	chunkSize := chunkSizeOf(data)
	for i, out := range parityOut {
		if len(out) != chunkSize {
			return fmt.Errorf("codec: parity chunk %d has size %d, want %d", i, len(out), chunkSize)
		}
		zeroBytes(out)
	}

	return encodeWithTables(data, parityOut, c.gTbls)
}

func encodeWithTables(data [][]byte, out [][]byte, tbls [][]mulTable) error {
	for i := range out {
		for j := range data {
			mulTableApply(tbls[i][j], out[i], data[j])
		}
	}
	return nil
}

func chunkSizeOf(chunks [][]byte) int {
	for _, c := range chunks {
		if c != nil {
			return len(c)
		}
	}
	return 0
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Rebuild reconstructs the chunks at missingIdx (up to p of them, any
// combination across data and parity positions) from the surviving
// chunks, following spec section 4.4 steps 1-6:
//
//  1. build an err_mask over [0, k+p)
//  2. pick k survivor rows, recording decode_index
//  3. form the k x k submatrix B of E over those rows and invert it
//  4. for data indices the reconstruction row is B^-1's row; for
//     parity indices it's E's row re-projected through B^-1
//  5. run one encode pass with a fresh table set built from those rows
//  6. return one freshly allocated chunk per requested missing index
//
// present must map every surviving chunk's original index (in
// [0, k+p)) to its bytes. missingIdx lists every index to reconstruct;
// each is delivered into its own destination slice, resolving the
// spec's open question about multi-chunk recovery explicitly (see
// DESIGN.md).
func (c *Codec) Rebuild(chunkSize int, present map[int][]byte, missingIdx []int) (map[int][]byte, error) {
	m := c.k + c.p
	if len(present)+len(missingIdx) != m {
		return nil, fmt.Errorf("codec: present(%d)+missing(%d) must total k+p=%d", len(present), len(missingIdx), m)
	}
	if len(missingIdx) > c.p {
		return nil, fmt.Errorf("codec: too many missing shards (%d), only %d parity shards available", len(missingIdx), c.p)
	}
	for _, idx := range missingIdx {
		if idx < 0 || idx >= m {
			return nil, fmt.Errorf("codec: missing index %d out of range [0,%d)", idx, m)
		}
	}

	errMask := make([]bool, m)
	for _, idx := range missingIdx {
		errMask[idx] = true
	}

	decodeIndex := make([]int, 0, c.k)
	for i := 0; i < m && len(decodeIndex) < c.k; i++ {
		if !errMask[i] {
			if _, ok := present[i]; !ok {
				return nil, fmt.Errorf("codec: index %d neither present nor in missingIdx", i)
			}
			decodeIndex = append(decodeIndex, i)
		}
	}
	if len(decodeIndex) < c.k {
		return nil, fmt.Errorf("codec: not enough surviving chunks to rebuild: have %d, need %d", len(decodeIndex), c.k)
	}

	b := c.e.subMatrix(decodeIndex)
	bInv, err := b.invert()
	if err != nil {
		return nil, fmt.Errorf("codec: survivor matrix is not invertible: %w", err)
	}

	sortedMissing := append([]int(nil), missingIdx...)
	sort.Ints(sortedMissing)

	reconstructRows := make(matrix, len(sortedMissing))
	for i, e := range sortedMissing {
		if e < c.k {
			reconstructRows[i] = bInv[e]
		} else {
			reconstructRows[i] = multiplyRowVector(c.e[e], bInv)
		}
	}

	tbls := buildGTbls(reconstructRows, c.k)

	survivors := make([][]byte, c.k)
	for i, idx := range decodeIndex {
		chunk, ok := present[idx]
		if !ok || len(chunk) != chunkSize {
			return nil, fmt.Errorf("codec: survivor chunk %d missing or malformed", idx)
		}
		survivors[i] = chunk
	}

	outs := make([][]byte, len(sortedMissing))
	for i := range outs {
		outs[i] = make([]byte, chunkSize)
	}
	if err := encodeWithTables(survivors, outs, tbls); err != nil {
		return nil, err
	}

	result := make(map[int][]byte, len(sortedMissing))
	for i, idx := range sortedMissing {
		result[idx] = outs[i]
	}
	return result, nil
}
