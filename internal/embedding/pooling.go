package embedding

import "fmt"

// Strategy selects how a patch-vector sequence is reduced to one vector.
type Strategy string

const (
	// PoolMax takes the per-dimension maximum across patches.
	PoolMax Strategy = "max"
	// PoolMean takes the per-dimension arithmetic mean across patches.
	PoolMean Strategy = "mean"
)

// Pool reduces a non-empty sequence of equal-width vectors to a single
// vector using the given strategy. The result is a deterministic function
// of the input set and is invariant to input ordering. Pooled vectors must
// be recomputed whenever the patch set changes; they are never mutated
// independently.
func Pool(vectors [][]float32, strategy Strategy) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding: pool: empty vector sequence")
	}
	width := len(vectors[0])
	for i, v := range vectors {
		if len(v) != width {
			return nil, fmt.Errorf("embedding: pool: vector %d has width %d, expected %d", i, len(v), width)
		}
	}

	out := make([]float32, width)
	switch strategy {
	case PoolMax:
		copy(out, vectors[0])
		for _, v := range vectors[1:] {
			for d, x := range v {
				if x > out[d] {
					out[d] = x
				}
			}
		}
	case PoolMean:
		// Sum in float64 to keep the mean stable for long patch sequences.
		sums := make([]float64, width)
		for _, v := range vectors {
			for d, x := range v {
				sums[d] += float64(x)
			}
		}
		n := float64(len(vectors))
		for d := range out {
			out[d] = float32(sums[d] / n)
		}
	default:
		return nil, fmt.Errorf("embedding: pool: unknown strategy %q", strategy)
	}
	return out, nil
}
