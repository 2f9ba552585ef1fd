package codec

import "fmt"

// matrix is a dense row-major GF(2^8) matrix.
type matrix [][]byte

func newMatrix(rows, cols int) matrix {
	m := make(matrix, rows)
	for i := range m {
		m[i] = make([]byte, cols)
	}
	return m
}

func (m matrix) rows() int { return len(m) }
func (m matrix) cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// buildCauchyMatrix builds the (k+p) x k encode matrix E described in
// spec section 4.4: the top k x k block is the identity (data chunks
// pass through the encoder unchanged), and each of the p parity rows
// i (i in [k, k+p)) is defined as E[i][j] = inverse(x_i XOR y_j) with
// x_i = i and y_j = j. Because x ranges over [k, k+p) and y ranges
// over [0, k), the two sets are disjoint, so x_i XOR y_j is never
// zero and every row is well defined. This is the standard
// "Cauchy Reed-Solomon" construction: any k x k submatrix of the
// full m x k matrix is invertible.
func buildCauchyMatrix(k, p int) matrix {
	m := newMatrix(k+p, k)
	for i := 0; i < k; i++ {
		m[i][i] = 1
	}
	for i := k; i < k+p; i++ {
		for j := 0; j < k; j++ {
			m[i][j] = gfInv(byte(i) ^ byte(j))
		}
	}
	return m
}

// subMatrix extracts the rows at the given indices, in order.
func (m matrix) subMatrix(rowIdx []int) matrix {
	out := newMatrix(len(rowIdx), m.cols())
	for i, r := range rowIdx {
		copy(out[i], m[r])
	}
	return out
}

// multiplyRowVector computes row (1xN) times m (NxM) over GF(2^8),
// i.e. out[j] = XOR over i of row[i] * m[i][j].
func multiplyRowVector(row []byte, m matrix) []byte {
	out := make([]byte, m.cols())
	for i, coeff := range row {
		if coeff == 0 {
			continue
		}
		for j := 0; j < m.cols(); j++ {
			out[j] = gfAdd(out[j], gfMul(coeff, m[i][j]))
		}
	}
	return out
}

// invert computes the inverse of a square GF(2^8) matrix via
// Gauss-Jordan elimination with an augmented identity matrix.
func (m matrix) invert() (matrix, error) {
	n := m.rows()
	if m.cols() != n {
		return nil, fmt.Errorf("codec: invert requires a square matrix, got %dx%d", n, m.cols())
	}

	aug := newMatrix(n, 2*n)
	for i := 0; i < n; i++ {
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if aug[r][col] != 0 {
				pivot = r
				break
			}
		}
		if pivot == -1 {
			return nil, fmt.Errorf("codec: matrix is singular, no pivot in column %d", col)
		}
		aug[col], aug[pivot] = aug[pivot], aug[col]

		inv := gfInv(aug[col][col])
		for c := 0; c < 2*n; c++ {
			aug[col][c] = gfMul(aug[col][c], inv)
		}

		for r := 0; r < n; r++ {
			if r == col || aug[r][col] == 0 {
				continue
			}
			factor := aug[r][col]
			for c := 0; c < 2*n; c++ {
				aug[r][c] = gfAdd(aug[r][c], gfMul(factor, aug[col][c]))
			}
		}
	}

	out := newMatrix(n, n)
	for i := 0; i < n; i++ {
		copy(out[i], aug[i][n:])
	}
	return out, nil
}
