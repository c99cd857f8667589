// Package parser defines the pluggable feed parser interface and registry.
package parser

import (
	"context"

	"github.com/friendnet-labs/friendsync/model"
)

// MaxConfidence is the score a parser reports when it is certain it owns a
// candidate, e.g. the native parser seeing the friends-base-url relation.
const MaxConfidence = 100

// Parser converts raw remote feeds into normalized feed items. A parser is
// a black box to the rest of the engine: it scores candidate URLs, fetches
// and normalizes them, and may enumerate feed candidates of its own (a
// parser can report a feed at a different URL than the page itself, e.g. a
// dedicated API endpoint).
type Parser interface {
	Slug() string

	// Confidence scores how well this parser can handle a discovered
	// link. Zero means it cannot handle the candidate at all.
	Confidence(url string, mimeType string, rel model.FeedRelation) int

	Fetch(ctx context.Context, url string, source *model.FeedSource) ([]*model.FeedItem, error)

	// DiscoverCandidates enumerates candidate feeds from a fetched page.
	// pageContent may be empty when the seed URL was unreachable.
	DiscoverCandidates(pageContent string, pageUrl string) map[string]*model.DiscoveryCandidate
}

// Registry maps parser slugs to registered parsers. It carries no global
// state; construct one per process and pass it explicitly.
type Registry struct {
	parsers map[string]Parser
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}}
}

func (r *Registry) Register(p Parser) {
	if _, ok := r.parsers[p.Slug()]; !ok {
		r.order = append(r.order, p.Slug())
	}
	r.parsers[p.Slug()] = p
}

func (r *Registry) Get(slug string) (Parser, bool) {
	p, ok := r.parsers[slug]
	return p, ok
}

// All returns registered parsers in registration order so discovery results
// are deterministic.
func (r *Registry) All() []Parser {
	res := make([]Parser, 0, len(r.order))
	for _, slug := range r.order {
		res = append(res, r.parsers[slug])
	}
	return res
}
