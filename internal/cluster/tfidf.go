package cluster

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/amishk599/skillradar/internal/model"
)

// Both wrap model.ErrInsufficientInput.
var (
	ErrNoDocuments     = fmt.Errorf("%w: no documents to fit", model.ErrInsufficientInput)
	ErrEmptyVocabulary = fmt.Errorf("%w: documents contain no terms", model.ErrInsufficientInput)
)

// Tokens are runs of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// CleanSkills lower-cases a comma-separated skills string and turns the
// commas into spaces so each skill tokenizes on its own.
func CleanSkills(skills string) string {
	return strings.ReplaceAll(strings.ToLower(skills), ",", " ")
}

func tokenize(doc string) []string {
	return tokenPattern.FindAllString(strings.ToLower(doc), -1)
}

// Vectorizer maps text to L2-normalized TF-IDF vectors over a fixed vocabulary.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
}

// FitVectorizer learns a vocabulary and smoothed IDF weights from docs.
// When maxFeatures > 0 only the most frequent terms across the corpus are
// kept; ties go to the alphabetically first term. Indices are assigned in
// alphabetical order.
func FitVectorizer(docs []string, maxFeatures int) (*Vectorizer, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	counts := make(map[string]int)
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range tokenize(doc) {
			counts[tok]++
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	if len(counts) == 0 {
		return nil, ErrEmptyVocabulary
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if maxFeatures > 0 && len(terms) > maxFeatures {
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		Vocabulary: make(map[string]int, len(terms)),
		IDF:        make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.Vocabulary[t] = i
		v.IDF[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v, nil
}

// Dim is the length of every vector Transform returns.
func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// Transform returns the TF-IDF vector of doc. Out-of-vocabulary terms are
// ignored; a doc with no known terms yields the zero vector.
func (v *Vectorizer) Transform(doc string) []float64 {
	vec := make([]float64, len(v.IDF))
	for _, tok := range tokenize(doc) {
		if idx, ok := v.Vocabulary[tok]; ok {
			vec[idx]++
		}
	}

	var norm float64
	for i := range vec {
		vec[i] *= v.IDF[i]
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Terms returns the vocabulary ordered by feature index.
func (v *Vectorizer) Terms() []string {
	terms := make([]string, len(v.IDF))
	for t, i := range v.Vocabulary {
		terms[i] = t
	}
	return terms
}

func (v *Vectorizer) validate() error {
	if len(v.IDF) == 0 {
		return ErrEmptyVocabulary
	}
	if len(v.Vocabulary) != len(v.IDF) {
		return fmt.Errorf("vocabulary has %d terms but %d idf weights", len(v.Vocabulary), len(v.IDF))
	}
	owner := make(map[int]string, len(v.Vocabulary))
	for t, i := range v.Vocabulary {
		if i < 0 || i >= len(v.IDF) {
			return fmt.Errorf("term %q has out-of-range index %d", t, i)
		}
		if prev, dup := owner[i]; dup {
			return fmt.Errorf("terms %q and %q share index %d", prev, t, i)
		}
		owner[i] = t
	}
	return nil
}
