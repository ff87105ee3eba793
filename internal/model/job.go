package model

import (
	"context"
	"sort"
	"strings"
)

// Unassigned marks a record that has not been through a classifier yet.
const Unassigned = -1

// JobRecord is one scraped job listing plus the cluster assigned to it.
type JobRecord struct {
	Title      string
	Company    string
	Location   string
	Skills     string // comma-separated free text
	Experience string // optional
	Summary    string // optional
	Cluster    int    // Unassigned until classified
}

// Identifier is the dedup key: Title followed by Company, with CRLF line
// breaks read as LF. Two different jobs with the same title at the same
// company collapse into one.
func (j JobRecord) Identifier() string {
	return foldCRLF(j.Title) + foldCRLF(j.Company)
}

// WithLFNewlines returns j with every CRLF in its text fields replaced by LF.
// A CSV round trip cannot preserve CRLF inside a field, so every record is
// put in this form before it is classified or written.
func (j JobRecord) WithLFNewlines() JobRecord {
	j.Title = foldCRLF(j.Title)
	j.Company = foldCRLF(j.Company)
	j.Location = foldCRLF(j.Location)
	j.Skills = foldCRLF(j.Skills)
	j.Experience = foldCRLF(j.Experience)
	j.Summary = foldCRLF(j.Summary)
	return j
}

func foldCRLF(s string) string {
	if !strings.Contains(s, "\r\n") {
		return s
	}
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// Batch is one scrape snapshot, in source order.
type Batch []JobRecord

// Identifiers returns the set of record identifiers in b.
func (b Batch) Identifiers() map[string]struct{} {
	ids := make(map[string]struct{}, len(b))
	for _, j := range b {
		ids[j.Identifier()] = struct{}{}
	}
	return ids
}

// ClusterSet is the user's set of preferred cluster ids.
type ClusterSet map[int]struct{}

func NewClusterSet(ids ...int) ClusterSet {
	s := make(ClusterSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ClusterSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s ClusterSet) Sorted() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Classifier assigns a cluster id to cleaned skills text.
// Implementations must be safe to call repeatedly and never mutate themselves.
type Classifier interface {
	Assign(skills string) int
	NumClusters() int
}

// BatchSource loads the latest scraped batch (e.g. a CSV export).
type BatchSource interface {
	LoadBatch(ctx context.Context) (Batch, error)
}

// BaselineStore persists the previous run's classified batch.
// LoadBaseline returns ErrNoBaseline when nothing has been saved yet.
type BaselineStore interface {
	LoadBaseline(ctx context.Context) (Batch, error)
	SaveBaseline(ctx context.Context, batch Batch) error
}

// ModelStore persists opaque classifier artifacts by key.
// LoadModel returns ErrModelNotFound when the key is absent.
type ModelStore interface {
	LoadModel(ctx context.Context, key string) ([]byte, error)
	SaveModel(ctx context.Context, key string, blob []byte) error
}

// Store is a backend that holds both the baseline and the model artifacts.
type Store interface {
	BaselineStore
	ModelStore
}

// Notifier sends alerts for new records in preferred clusters.
type Notifier interface {
	Notify(alerts Batch) error
}

// JobFilter decides whether a record matches the user's criteria.
type JobFilter interface {
	Match(job JobRecord) bool
}
