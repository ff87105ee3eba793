package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/amishk599/skillradar/internal/model"
)

var ErrTooFewSamples = fmt.Errorf("%w: fewer samples than clusters", model.ErrInsufficientInput)

// KMeans holds fitted centroids. Predict is read-only and safe for
// concurrent use.
type KMeans struct {
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
}

// KMeansOptions controls a k-means fit. Zero values fall back to defaults.
type KMeansOptions struct {
	Clusters      int
	MaxIterations int     // default 300
	NInit         int     // independent restarts, best inertia wins; default 1
	Tolerance     float64 // stop when total squared centroid shift is below this; default 1e-6
	Seed          uint64
}

// FitKMeans clusters points with k-means++ seeding and Lloyd iterations.
// The result is deterministic for a given seed.
func FitKMeans(points [][]float64, opts KMeansOptions) (*KMeans, error) {
	k := opts.Clusters
	if k <= 0 {
		return nil, fmt.Errorf("clusters must be positive, got %d", k)
	}
	if len(points) < k {
		return nil, fmt.Errorf("%w: %d samples, %d clusters", ErrTooFewSamples, len(points), k)
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 300
	}
	nInit := opts.NInit
	if nInit <= 0 {
		nInit = 1
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = 1e-6
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	labels := make([]int, len(points))

	var best *KMeans
	for run := 0; run < nInit; run++ {
		centroids := seedPlusPlus(points, k, rng)
		for iter := 0; iter < maxIter; iter++ {
			assign(points, centroids, labels)
			shift := recompute(points, labels, centroids)
			if shift <= tol {
				break
			}
		}
		inertia := assign(points, centroids, labels)
		if best == nil || inertia < best.Inertia {
			best = &KMeans{Centroids: centroids, Inertia: inertia}
		}
	}
	return best, nil
}

// Predict returns the index of the nearest centroid. Ties go to the lower index.
func (km *KMeans) Predict(point []float64) int {
	label, _ := nearest(point, km.Centroids)
	return label
}

func (km *KMeans) validate(dim int) error {
	if len(km.Centroids) == 0 {
		return errors.New("model has no centroids")
	}
	for i, c := range km.Centroids {
		if len(c) != dim {
			return fmt.Errorf("centroid %d has %d dimensions, vectorizer has %d", i, len(c), dim)
		}
	}
	return nil
}

func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.IntN(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			_, d := nearest(p, centroids)
			dist[i] = d
			total += d
		}

		// Every point already sits on a centroid: pick uniformly.
		if total == 0 {
			centroids = append(centroids, clone(points[rng.IntN(len(points))]))
			continue
		}

		target := rng.Float64() * total
		chosen := len(points) - 1
		for i, d := range dist {
			target -= d
			if target < 0 {
				chosen = i
				break
			}
		}
		centroids = append(centroids, clone(points[chosen]))
	}
	return centroids
}

// assign writes the nearest centroid of every point into labels and returns
// the inertia (sum of squared distances).
func assign(points, centroids [][]float64, labels []int) float64 {
	var inertia float64
	for i, p := range points {
		label, d := nearest(p, centroids)
		labels[i] = label
		inertia += d
	}
	return inertia
}

// recompute moves each centroid to the mean of its points in place and
// returns the total squared shift. An empty cluster is re-seeded with the
// point farthest from its current centroid.
func recompute(points [][]float64, labels []int, centroids [][]float64) float64 {
	k := len(centroids)
	dim := len(centroids[0])
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	sizes := make([]int, k)
	for i, p := range points {
		c := labels[i]
		sizes[c]++
		for d, x := range p {
			sums[c][d] += x
		}
	}

	taken := make(map[int]bool)
	var shift float64
	for c := range centroids {
		var next []float64
		if sizes[c] == 0 {
			idx := farthest(points, labels, centroids, taken)
			taken[idx] = true
			next = clone(points[idx])
		} else {
			next = sums[c]
			for d := range next {
				next[d] /= float64(sizes[c])
			}
		}
		shift += sqDist(centroids[c], next)
		centroids[c] = next
	}
	return shift
}

func farthest(points [][]float64, labels []int, centroids [][]float64, taken map[int]bool) int {
	best, bestDist := 0, -1.0
	for i, p := range points {
		if taken[i] {
			continue
		}
		if d := sqDist(p, centroids[labels[i]]); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func clone(p []float64) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	return out
}
