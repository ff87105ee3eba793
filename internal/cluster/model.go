// Package cluster implements the skills classifier: a TF-IDF vectorizer
// feeding a k-means model. The two halves are persisted as separate
// artifacts so a store can hold them under independent keys.
package cluster

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/amishk599/skillradar/internal/model"
)

// Artifact keys under which a Model is persisted.
const (
	VectorizerKey = "vectorizer"
	KMeansKey     = "cluster-model"
)

// Config is the training configuration.
type Config struct {
	Clusters      int
	MaxFeatures   int
	MaxIterations int
	NInit         int
	Seed          uint64
}

// DefaultConfig returns the reference configuration: 5 clusters over at most
// 1000 terms, seed 42.
func DefaultConfig() Config {
	return Config{
		Clusters:      5,
		MaxFeatures:   1000,
		MaxIterations: 300,
		NInit:         1,
		Seed:          42,
	}
}

// Ensure Model implements model.Classifier.
var _ model.Classifier = (*Model)(nil)

// Model assigns cleaned skills text to one of NumClusters clusters.
type Model struct {
	vectorizer *Vectorizer
	kmeans     *KMeans
}

// New pairs a vectorizer with a k-means model, rejecting mismatched shapes.
func New(v *Vectorizer, km *KMeans) (*Model, error) {
	if err := v.validate(); err != nil {
		return nil, fmt.Errorf("invalid vectorizer: %w", err)
	}
	if err := km.validate(v.Dim()); err != nil {
		return nil, fmt.Errorf("invalid cluster model: %w", err)
	}
	return &Model{vectorizer: v, kmeans: km}, nil
}

// Train fits a vectorizer and k-means on docs, which should already be
// cleaned with CleanSkills.
func Train(docs []string, cfg Config) (*Model, error) {
	v, err := FitVectorizer(docs, cfg.MaxFeatures)
	if err != nil {
		return nil, fmt.Errorf("fitting vectorizer: %w", err)
	}

	points := make([][]float64, len(docs))
	for i, doc := range docs {
		points[i] = v.Transform(doc)
	}

	km, err := FitKMeans(points, KMeansOptions{
		Clusters:      cfg.Clusters,
		MaxIterations: cfg.MaxIterations,
		NInit:         cfg.NInit,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("fitting k-means: %w", err)
	}
	return New(v, km)
}

func (m *Model) Assign(skills string) int {
	return m.kmeans.Predict(m.vectorizer.Transform(skills))
}

func (m *Model) NumClusters() int {
	return len(m.kmeans.Centroids)
}

// VocabularySize is the number of terms the vectorizer kept.
func (m *Model) VocabularySize() int {
	return m.vectorizer.Dim()
}

// TopTerms returns up to n terms with the highest weight in the centroid of
// cluster, heaviest first. Zero-weight terms are skipped.
func (m *Model) TopTerms(cluster, n int) []string {
	if cluster < 0 || cluster >= m.NumClusters() || n <= 0 {
		return nil
	}
	centroid := m.kmeans.Centroids[cluster]
	terms := m.vectorizer.Terms()

	idx := make([]int, 0, len(centroid))
	for i, w := range centroid {
		if w > 0 {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		if centroid[idx[a]] != centroid[idx[b]] {
			return centroid[idx[a]] > centroid[idx[b]]
		}
		return terms[idx[a]] < terms[idx[b]]
	})
	if len(idx) > n {
		idx = idx[:n]
	}

	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = terms[j]
	}
	return out
}

// Artifacts serializes the model into one blob per key.
func (m *Model) Artifacts() (map[string][]byte, error) {
	vBlob, err := json.Marshal(m.vectorizer)
	if err != nil {
		return nil, fmt.Errorf("encoding vectorizer: %w", err)
	}
	kmBlob, err := json.Marshal(m.kmeans)
	if err != nil {
		return nil, fmt.Errorf("encoding cluster model: %w", err)
	}
	return map[string][]byte{
		VectorizerKey: vBlob,
		KMeansKey:     kmBlob,
	}, nil
}

// Decode rebuilds a Model from the blobs produced by Artifacts. Errors are
// reported as *model.ModelLoadError naming the offending key.
func Decode(vBlob, kmBlob []byte) (*Model, error) {
	var v Vectorizer
	if err := json.Unmarshal(vBlob, &v); err != nil {
		return nil, &model.ModelLoadError{Key: VectorizerKey, Err: err}
	}
	if err := v.validate(); err != nil {
		return nil, &model.ModelLoadError{Key: VectorizerKey, Err: err}
	}

	var km KMeans
	if err := json.Unmarshal(kmBlob, &km); err != nil {
		return nil, &model.ModelLoadError{Key: KMeansKey, Err: err}
	}
	if err := km.validate(v.Dim()); err != nil {
		return nil, &model.ModelLoadError{Key: KMeansKey, Err: err}
	}
	return &Model{vectorizer: &v, kmeans: &km}, nil
}
