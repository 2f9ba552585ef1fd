package codec

import "fmt"

// BindRecoverFunc returns the recover function closure the rebuild
// engine invokes once a stripe's survivor chunks have been read. It
// captures the codec, the chunk size, and the error-index layout at
// bind time, matching the design note that the recover closure must
// hold (matrix reference, error indices, chunk size) with no aliased
// mutable state.
//
// survivorIdx gives the original chunk index (in [0, k+p)) of each
// chunk as it appears, in order, within the concatenated src buffer.
// missingIdx gives the original chunk index of each destination chunk
// as it appears, in order, within the concatenated dst buffer. Each
// reconstructed chunk lands at its own offset in dst, so a multi-chunk
// rebuild never overwrites an earlier chunk's bytes.
func (c *Codec) BindRecoverFunc(chunkSize int, survivorIdx, missingIdx []int) func(dst, src []byte, dstSize uint64) error {
	return func(dst, src []byte, dstSize uint64) error {
		wantSrc := len(survivorIdx) * chunkSize
		if len(src) != wantSrc {
			return fmt.Errorf("codec: recover func expects src of %d bytes, got %d", wantSrc, len(src))
		}
		wantDst := len(missingIdx) * chunkSize
		if int(dstSize) != wantDst || len(dst) < wantDst {
			return fmt.Errorf("codec: recover func expects dst of %d bytes, got %d (dstSize=%d)", wantDst, len(dst), dstSize)
		}

		present := make(map[int][]byte, len(survivorIdx))
		for i, idx := range survivorIdx {
			present[idx] = src[i*chunkSize : (i+1)*chunkSize]
		}
		rebuilt, err := c.Rebuild(chunkSize, present, missingIdx)
		if err != nil {
			return err
		}
		for i, idx := range missingIdx {
			copy(dst[i*chunkSize:(i+1)*chunkSize], rebuilt[idx])
		}
		return nil
	}
}
