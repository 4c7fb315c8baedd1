package boosting

import (
	"math"

	"github.com/YuminosukeSato/findhome/core/parallel"
	"github.com/YuminosukeSato/findhome/sklearn/tree"
)

// parallelRows is the node size from which per-feature histograms are
// built concurrently.
const parallelRows = 4096

// histBin accumulates gradient statistics of one bin.
type histBin struct {
	grad  float64
	hess  float64
	count int
}

// split describes the best split found for a node.
type split struct {
	feature int
	bin     int
	gain    float64
}

// builder grows one tree on second-order gradient statistics.
type builder struct {
	params   Params
	bins     [][]uint16
	binner   *binner
	features []int
	grad     []float64
	hess     []float64
	// pred receives the shrunk leaf value of every training row.
	pred []float64
	tree tree.Tree
}

// thresholdL1 soft-thresholds a gradient sum by alpha.
func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

// score returns the structure score T(G)^2 / (H + lambda) of a node.
func (b *builder) score(g, h float64) float64 {
	t := thresholdL1(g, b.params.RegAlpha)
	return t * t / (h + b.params.RegLambda)
}

// leafWeight returns the optimal leaf weight -T(G) / (H + lambda).
func (b *builder) leafWeight(g, h float64) float64 {
	denom := h + b.params.RegLambda
	if denom == 0 {
		return 0
	}
	return -thresholdL1(g, b.params.RegAlpha) / denom
}

// grow builds the node owning rows and returns its index.
func (b *builder) grow(rows []int, depth int) int {
	var g, h float64
	for _, i := range rows {
		g += b.grad[i]
		h += b.hess[i]
	}

	if (b.params.MaxDepth == 0 || depth < b.params.MaxDepth) && len(rows) > 1 {
		if s := b.bestSplit(rows, g, h); s.gain > 0 {
			value := b.params.LearningRate * b.leafWeight(g, h)
			node := b.tree.AddSplit(s.feature, b.binner.threshold(s.feature, s.bin), value, s.gain, len(rows))
			left, right := b.partition(rows, s)
			l := b.grow(left, depth+1)
			r := b.grow(right, depth+1)
			b.tree.SetChildren(node, l, r)
			return node
		}
	}

	value := b.params.LearningRate * b.leafWeight(g, h)
	for _, i := range rows {
		b.pred[i] += value
	}
	return b.tree.AddLeaf(value, len(rows))
}

// bestSplit scans the histogram of every sampled feature. Ties keep the
// earlier feature and the lower bin.
func (b *builder) bestSplit(rows []int, g, h float64) split {
	results := make([]split, len(b.features))
	scan := func(start, end int) {
		for k := start; k < end; k++ {
			results[k] = b.scanFeature(rows, b.features[k], g, h)
		}
	}
	if len(rows) >= parallelRows {
		parallel.Parallelize(len(b.features), scan)
	} else {
		scan(0, len(b.features))
	}

	best := split{feature: -1, gain: math.Inf(-1)}
	for _, s := range results {
		if s.feature >= 0 && s.gain > best.gain {
			best = s
		}
	}
	return best
}

func (b *builder) scanFeature(rows []int, feature int, g, h float64) split {
	best := split{feature: -1, gain: math.Inf(-1)}
	nBins := b.binner.nBins(feature)
	if nBins < 2 {
		return best
	}

	hist := make([]histBin, nBins)
	col := b.bins[feature]
	for _, i := range rows {
		bin := &hist[col[i]]
		bin.grad += b.grad[i]
		bin.hess += b.hess[i]
		bin.count++
	}

	parent := b.score(g, h)
	var gl, hl float64
	nl := 0
	for bin := 0; bin < nBins-1; bin++ {
		gl += hist[bin].grad
		hl += hist[bin].hess
		nl += hist[bin].count
		if hist[bin].count == 0 {
			continue
		}
		nr := len(rows) - nl
		if nl == 0 || nr == 0 {
			continue
		}
		gr, hr := g-gl, h-hl
		if hl < b.params.MinChildWeight || hr < b.params.MinChildWeight {
			continue
		}
		gain := 0.5*(b.score(gl, hl)+b.score(gr, hr)-parent) - b.params.Gamma
		if gain > best.gain {
			best = split{feature: feature, bin: bin, gain: gain}
		}
	}
	return best
}

// partition reorders rows in place so that the left child comes first.
func (b *builder) partition(rows []int, s split) (left, right []int) {
	col := b.bins[s.feature]
	lo, hi := 0, len(rows)-1
	for lo <= hi {
		if int(col[rows[lo]]) <= s.bin {
			lo++
		} else {
			rows[lo], rows[hi] = rows[hi], rows[lo]
			hi--
		}
	}
	return rows[:lo], rows[lo:]
}
