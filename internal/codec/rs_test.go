package codec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomChunks(t *testing.T, k, size int, seed int64) [][]byte {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	chunks := make([][]byte, k)
	for i := range chunks {
		chunks[i] = make([]byte, size)
		_, err := r.Read(chunks[i])
		require.NoError(t, err)
	}
	return chunks
}

func TestNewCodec_Validation(t *testing.T) {
	_, err := NewCodec(0, 2)
	assert.Error(t, err)

	_, err = NewCodec(4, 0)
	assert.Error(t, err)
}

func TestEncode_ProducesRequestedShardCount(t *testing.T) {
	c, err := NewCodec(4, 2)
	require.NoError(t, err)

	data := randomChunks(t, 4, 16, 1)
	parity := [][]byte{make([]byte, 16), make([]byte, 16)}

	err = c.Encode(data, parity)
	require.NoError(t, err)
	assert.NotEqual(t, make([]byte, 16), parity[0])
}

func TestSingleErasureCorrectness(t *testing.T) {
	const k, p, size = 4, 2, 32
	c, err := NewCodec(k, p)
	require.NoError(t, err)

	data := randomChunks(t, k, size, 42)
	parity := [][]byte{make([]byte, size), make([]byte, size)}
	require.NoError(t, c.Encode(data, parity))

	all := append(append([][]byte{}, data...), parity...)

	for erase := 0; erase < k+p; erase++ {
		present := map[int][]byte{}
		for i, chunk := range all {
			if i != erase {
				present[i] = chunk
			}
		}
		rebuilt, err := c.Rebuild(size, present, []int{erase})
		require.NoError(t, err, "erase index %d", erase)
		assert.Equal(t, all[erase], rebuilt[erase], "erase index %d", erase)
	}
}

func TestDoubleErasureCorrectness(t *testing.T) {
	const k, p, size = 6, 2, 16
	c, err := NewCodec(k, p)
	require.NoError(t, err)

	data := randomChunks(t, k, size, 7)
	parity := [][]byte{make([]byte, size), make([]byte, size)}
	require.NoError(t, c.Encode(data, parity))
	all := append(append([][]byte{}, data...), parity...)

	for i := 0; i < k+p; i++ {
		for j := i + 1; j < k+p; j++ {
			present := map[int][]byte{}
			for idx, chunk := range all {
				if idx != i && idx != j {
					present[idx] = chunk
				}
			}
			rebuilt, err := c.Rebuild(size, present, []int{i, j})
			require.NoError(t, err, "erase %d,%d", i, j)
			assert.Equal(t, all[i], rebuilt[i], "erase %d,%d chunk %d", i, j, i)
			assert.Equal(t, all[j], rebuilt[j], "erase %d,%d chunk %d", i, j, j)
		}
	}
}

func TestRebuild_TooManyMissing(t *testing.T) {
	const k, p, size = 4, 2, 8
	c, err := NewCodec(k, p)
	require.NoError(t, err)

	data := randomChunks(t, k, size, 3)
	parity := [][]byte{make([]byte, size), make([]byte, size)}
	require.NoError(t, c.Encode(data, parity))

	present := map[int][]byte{0: data[0], 1: data[1], 2: data[2]}
	_, err = c.Rebuild(size, present, []int{3, 4, 5})
	assert.Error(t, err)
}

func TestRebuild_DistinctDestinationsPerChunk(t *testing.T) {
	// Resolves the spec's open question: multi-chunk recovery must
	// deliver each missing chunk to its own buffer, not overwrite a
	// shared destination.
	const k, p, size = 4, 2, 8
	c, err := NewCodec(k, p)
	require.NoError(t, err)

	data := randomChunks(t, k, size, 99)
	parity := [][]byte{make([]byte, size), make([]byte, size)}
	require.NoError(t, c.Encode(data, parity))
	all := append(append([][]byte{}, data...), parity...)

	present := map[int][]byte{2: all[2], 3: all[3], 4: all[4], 5: all[5]}
	rebuilt, err := c.Rebuild(size, present, []int{0, 1})
	require.NoError(t, err)
	require.Len(t, rebuilt, 2)
	assert.Equal(t, all[0], rebuilt[0])
	assert.Equal(t, all[1], rebuilt[1])
	assert.NotEqual(t, rebuilt[0], rebuilt[1])
}

func TestEncode_DeterministicAcrossCalls(t *testing.T) {
	const k, p, size = 3, 2, 24
	c, err := NewCodec(k, p)
	require.NoError(t, err)

	data := randomChunks(t, k, size, 123)

	parity1 := [][]byte{make([]byte, size), make([]byte, size)}
	require.NoError(t, c.Encode(data, parity1))

	parity2 := [][]byte{make([]byte, size), make([]byte, size)}
	require.NoError(t, c.Encode(data, parity2))

	assert.Equal(t, parity1, parity2)
}
