package model

import (
	"sort"
	"strings"
)

// Metadata keys of vectors in the items namespace, written by the ingestion pipeline
const (
	ArticleMetaTitle   = "title"
	ArticleMetaURL     = "url"
	ArticleMetaPassage = "passage"
)

// Metadata keys of vectors in the users namespace
const (
	UserMetaDescription = "description"
)

// Article is a Hacker News item as seen by the digest. Owned by ingestion,
// read-only here.
type Article struct {
	ID      string // Hacker News item ID
	Title   string
	URL     string
	Summary string
	Score   float64 // Similarity to the user vector at selection time
	Link    string  // Tracked click link, filled in when the digest is built
}

// HNURL returns the discussion page of the item
func (a *Article) HNURL() string {
	return "https://news.ycombinator.com/item?id=" + a.ID
}

// ArticleFromVector builds an Article from an items-namespace vector
func ArticleFromVector(v *Vector) *Article {
	a := &Article{ID: v.ID}
	if s, ok := v.Metadata[ArticleMetaTitle].(string); ok {
		a.Title = s
	}
	if s, ok := v.Metadata[ArticleMetaURL].(string); ok {
		a.URL = s
	}
	if s, ok := v.Metadata[ArticleMetaPassage].(string); ok {
		// Ingestion stores "<title>. <summary>" as the embedded passage
		a.Summary = strings.TrimPrefix(s, a.Title+". ")
	}
	if a.URL == "" {
		a.URL = a.HNURL()
	}
	return a
}

// ArticleSet is a set of article IDs, used for a user's sent history
type ArticleSet map[string]struct{}

// NewArticleSet creates a set from ids
func NewArticleSet(ids ...string) ArticleSet {
	s := make(ArticleSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s ArticleSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts ids into the set
func (s ArticleSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// IDs returns the members in ascending order
func (s ArticleSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
