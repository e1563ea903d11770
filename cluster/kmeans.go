// Package cluster groups repositories by their popularity and size profile.
package cluster

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"githubinsight/models"
)

// ErrNoData is returned when there is nothing to cluster.
var ErrNoData = errors.New("no repositories to cluster")

// DefaultSeed seeds centroid initialization unless the caller picks another.
const DefaultSeed = 42

const (
	restarts      = 10
	maxIterations = 300
)

// Assignment is a repository with its cluster label. Labels are in [0, k) and
// carry no ordering meaning.
type Assignment struct {
	Name    string `json:"name"`
	Cluster int    `json:"cluster"`
	Stars   int    `json:"stars"`
	Forks   int    `json:"forks"`
}

// KMeans partitions repos into k groups using standardized stars, forks, size
// and README length. k is clamped to [1, len(repos)]. The result is in input
// order and depends only on repos, k and seed.
func KMeans(repos []models.RepoRecord, k int, seed int64) ([]Assignment, error) {
	if len(repos) == 0 {
		return nil, ErrNoData
	}
	if k < 1 {
		k = 1
	}
	if k > len(repos) {
		k = len(repos)
	}

	points := standardize(features(repos))
	rng := rand.New(rand.NewSource(seed))

	var best []int
	bestInertia := math.Inf(1)
	for i := 0; i < restarts; i++ {
		labels, inertia := lloyd(points, seedCentroids(points, k, rng))
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}

	out := make([]Assignment, len(repos))
	for i, r := range repos {
		out[i] = Assignment{Name: r.Name, Cluster: best[i], Stars: r.Stars, Forks: r.Forks}
	}
	return out, nil
}

func features(repos []models.RepoRecord) [][]float64 {
	out := make([][]float64, len(repos))
	for i, r := range repos {
		out[i] = []float64{float64(r.Stars), float64(r.Forks), float64(r.Size), float64(r.ReadmeLength)}
	}
	return out
}

// standardize rescales each column to zero mean and unit population variance.
// A constant column becomes all zeros.
func standardize(points [][]float64) [][]float64 {
	dims := len(points[0])
	col := make([]float64, len(points))
	for d := 0; d < dims; d++ {
		for i, p := range points {
			col[i] = p[d]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		for _, p := range points {
			if std == 0 {
				p[d] = 0
				continue
			}
			p[d] = (p[d] - mean) / std
		}
	}
	return points
}

// seedCentroids picks k starting centroids with k-means++ weighting.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		for i, p := range points {
			_, dist[i] = nearest(p, centroids)
		}
		total := floats.Sum(dist)
		if total == 0 {
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
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

// lloyd refines centroids until assignments stop changing and returns the
// labels with their inertia (sum of squared distances).
func lloyd(points, centroids [][]float64) ([]int, float64) {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			c, _ := nearest(p, centroids)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, len(centroids))
		sums := make([][]float64, len(centroids))
		for c := range sums {
			sums[c] = make([]float64, len(points[0]))
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range centroids {
			// An empty cluster keeps its previous centroid.
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centroids[c] = sums[c]
		}
	}

	var inertia float64
	for i, p := range points {
		d := floats.Distance(p, centroids[labels[i]], 2)
		inertia += d * d
	}
	return labels, inertia
}

// nearest returns the index of the closest centroid and the squared distance
// to it. Ties go to the lower index.
func nearest(p []float64, centroids [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		d := floats.Distance(p, centroid, 2)
		if d*d < bestDist {
			best, bestDist = c, d*d
		}
	}
	return best, bestDist
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
