package filter

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/amishk599/skillradar/internal/model"
)

// Ensure both filters implement model.JobFilter.
var (
	_ model.JobFilter = (*ClusterFilter)(nil)
	_ model.JobFilter = (*KeywordFilter)(nil)
)

// ClusterFilter matches records whose cluster is in the preferred set.
// An empty set matches nothing.
type ClusterFilter struct {
	preferred model.ClusterSet
}

func NewClusterFilter(preferred model.ClusterSet) *ClusterFilter {
	return &ClusterFilter{preferred: preferred}
}

func (f *ClusterFilter) Match(job model.JobRecord) bool {
	return f.preferred.Has(job.Cluster)
}

// KeywordFilter narrows alerts further by title and location keywords.
// Matching is case-insensitive substring. Empty include lists are treated as
// "match all"; any exclude hit rejects the record.
type KeywordFilter struct {
	titleKeywords        *keywordSet
	titleExcludeKeywords *keywordSet
	locations            *keywordSet
	excludeLocations     *keywordSet
}

// NewKeywordFilter returns a filter that requires a title keyword match and a
// location keyword match, and no exclude hit on either field.
func NewKeywordFilter(titleKeywords, titleExcludeKeywords, locations, excludeLocations []string) *KeywordFilter {
	return &KeywordFilter{
		titleKeywords:        newKeywordSet(titleKeywords),
		titleExcludeKeywords: newKeywordSet(titleExcludeKeywords),
		locations:            newKeywordSet(locations),
		excludeLocations:     newKeywordSet(excludeLocations),
	}
}

// Match returns true if the record passes every configured keyword list.
func (f *KeywordFilter) Match(job model.JobRecord) bool {
	title := []byte(strings.ToLower(job.Title))
	location := []byte(strings.ToLower(job.Location))

	if f.titleExcludeKeywords.containsAny(title) || f.excludeLocations.containsAny(location) {
		return false
	}
	if !f.titleKeywords.empty() && !f.titleKeywords.containsAny(title) {
		return false
	}
	if !f.locations.empty() && !f.locations.containsAny(location) {
		return false
	}
	return true
}

// IsEmpty reports whether no keyword list is configured.
func (f *KeywordFilter) IsEmpty() bool {
	return f.titleKeywords.empty() && f.titleExcludeKeywords.empty() &&
		f.locations.empty() && f.excludeLocations.empty()
}

// keywordSet finds any of its lower-cased keywords in one pass.
// A nil set holds no keywords.
type keywordSet struct {
	matcher *ahocorasick.Matcher
}

func newKeywordSet(keywords []string) *keywordSet {
	var dict []string
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			dict = append(dict, kw)
		}
	}
	if len(dict) == 0 {
		return nil
	}
	return &keywordSet{matcher: ahocorasick.NewStringMatcher(dict)}
}

func (k *keywordSet) empty() bool { return k == nil }

func (k *keywordSet) containsAny(text []byte) bool {
	if k == nil {
		return false
	}
	return len(k.matcher.Match(text)) > 0
}

// Apply returns the order-preserving subsequence of batch that f matches.
// The result is never nil.
func Apply(f model.JobFilter, batch model.Batch) model.Batch {
	out := model.Batch{}
	for _, j := range batch {
		if f.Match(j) {
			out = append(out, j)
		}
	}
	return out
}
