package boosting

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// DefaultMaxBin is the number of histogram bins per feature.
const DefaultMaxBin = 256

// binner quantizes every feature into at most maxBin ordered bins. Value v
// of feature j falls into bin b when cuts[j][b-1] < v <= cuts[j][b], so a
// split "bin <= b" is the same as "v <= cuts[j][b]".
type binner struct {
	cuts [][]float64
}

// newBinner computes cut points per feature. Features with few distinct
// values cut at the midpoint of every consecutive pair, others at
// equal-frequency quantiles of the distinct values.
func newBinner(X *mat.Dense, maxBin int) *binner {
	rows, cols := X.Dims()
	b := &binner{cuts: make([][]float64, cols)}
	values := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(values, j, X)
		b.cuts[j] = cutPoints(values, maxBin)
	}
	return b
}

func cutPoints(values []float64, maxBin int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}

	if len(unique) <= maxBin {
		cuts := make([]float64, 0, len(unique)-1)
		for i := 1; i < len(unique); i++ {
			cuts = append(cuts, (unique[i-1]+unique[i])/2)
		}
		return cuts
	}

	step := float64(len(unique)) / float64(maxBin)
	cuts := make([]float64, 0, maxBin-1)
	for k := 1; k < maxBin; k++ {
		i := int(float64(k) * step)
		cut := (unique[i-1] + unique[i]) / 2
		if len(cuts) == 0 || cut > cuts[len(cuts)-1] {
			cuts = append(cuts, cut)
		}
	}
	return cuts
}

// nBins returns the number of bins of feature j.
func (b *binner) nBins(j int) int {
	return len(b.cuts[j]) + 1
}

// bin returns the bin of value v for feature j.
func (b *binner) bin(j int, v float64) int {
	return sort.SearchFloat64s(b.cuts[j], v)
}

// threshold returns the split value that sends bins <= bin left.
func (b *binner) threshold(j, bin int) float64 {
	return b.cuts[j][bin]
}

// quantize returns the column-major bin matrix of X.
func (b *binner) quantize(X *mat.Dense) [][]uint16 {
	rows, cols := X.Dims()
	out := make([][]uint16, cols)
	for j := 0; j < cols; j++ {
		col := make([]uint16, rows)
		for i := 0; i < rows; i++ {
			col[i] = uint16(b.bin(j, X.At(i, j)))
		}
		out[j] = col
	}
	return out
}
