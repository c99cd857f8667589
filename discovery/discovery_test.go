package discovery

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/friendnet-labs/friendsync/model"
	"github.com/friendnet-labs/friendsync/parser"
)

func docFromString(t *testing.T, page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func testRegistry() *parser.Registry {
	registry := parser.NewRegistry()
	registry.Register(parser.NewRssParser(nil))
	registry.Register(parser.NewNativeParser(nil))
	return registry
}

func TestExtractLinkRels(t *testing.T) {
	page := `<html><head>
		<link rel="alternate" type="application/rss+xml" title="Posts" href="/feed">
		<link rel="self" href="https://example.com/atom.xml">
	</head><body>
		<a rel="me" href="https://social.example/@me">profile</a>
		<a href="/about">plain anchor, ignored</a>
	</body></html>`

	candidates := extractLinkRels(docFromString(t, page), "https://example.com/")
	require.Len(t, candidates, 3)

	feed := candidates["https://example.com/feed"]
	require.NotNil(t, feed)
	require.Equal(t, model.RelAlternate, feed.Rel)
	require.Equal(t, "application/rss+xml", feed.MimeType)
	require.Equal(t, "Posts", feed.Title)

	require.Equal(t, model.RelSelf, candidates["https://example.com/atom.xml"].Rel)
	require.Equal(t, model.RelMe, candidates["https://social.example/@me"].Rel)
}

func TestParseLinkHeaders(t *testing.T) {
	headers := []string{
		`</feed>; rel="alternate"; type="application/rss+xml"; title="Posts", <https://example.com/comments/feed>; rel="alternate"`,
		`not a link header`,
	}
	candidates := parseLinkHeaders(headers, "https://example.com/")
	require.Len(t, candidates, 2)

	feed := candidates["https://example.com/feed"]
	require.NotNil(t, feed)
	require.Equal(t, model.RelAlternate, feed.Rel)
	require.Equal(t, "application/rss+xml", feed.MimeType)
	require.Equal(t, "Posts", feed.Title)

	require.Equal(t, model.RelAlternate, candidates["https://example.com/comments/feed"].Rel)
}

func TestParseRelationMultiValued(t *testing.T) {
	require.Equal(t, model.RelMe, parseRelation("noopener me external"))
	require.Equal(t, model.RelUnknown, parseRelation("noopener nofollow"))
	require.Equal(t, model.RelFriendsBaseUrl, parseRelation("FRIENDS-BASE-URL"))
}

func TestScoreCandidatesForceSelectsNativeBaseUrl(t *testing.T) {
	d := &Discoverer{registry: testRegistry()}
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com": {
			Url: "https://example.com",
			Rel: model.RelFriendsBaseUrl,
		},
	}
	d.scoreCandidates(candidates)
	require.Equal(t, parser.NativeParserSlug, candidates["https://example.com"].ParserSlug)
	require.Equal(t, parser.MaxConfidence, candidates["https://example.com"].Confidence)
}

func TestScoreCandidatesPicksBestParserAndDropsUnparseable(t *testing.T) {
	d := &Discoverer{registry: testRegistry()}
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/feed": {
			Url:      "https://example.com/feed",
			Rel:      model.RelAlternate,
			MimeType: "application/rss+xml",
		},
		"gopher://example.com/unreachable": {
			Url: "gopher://example.com/unreachable",
		},
	}
	d.scoreCandidates(candidates)
	require.Len(t, candidates, 1)

	feed := candidates["https://example.com/feed"]
	require.Equal(t, parser.RssParserSlug, feed.ParserSlug)
	require.Equal(t, 75, feed.Confidence)
}

func TestScoreCandidatesFilterOverride(t *testing.T) {
	d := &Discoverer{registry: testRegistry()}
	d.Filter = func(p parser.Parser, candidate *model.DiscoveryCandidate, score int) int {
		if p.Slug() == parser.RssParserSlug {
			return 0
		}
		return score
	}
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/feed": {
			Url:      "https://example.com/feed",
			MimeType: "application/rss+xml",
		},
	}
	d.scoreCandidates(candidates)
	require.Empty(t, candidates)
}

func TestBackfillTitlesPriority(t *testing.T) {
	newCandidates := func() map[string]*model.DiscoveryCandidate {
		return map[string]*model.DiscoveryCandidate{
			"https://example.com/feed": {Url: "https://example.com/feed"},
			"https://example.com/titled": {
				Url:   "https://example.com/titled",
				Title: "Explicit",
			},
		}
	}

	candidates := newCandidates()
	backfillTitles(candidates, pageMeta{siteName: "Site", ogTitle: "OG", heading: "H1"})
	require.Equal(t, "Site", candidates["https://example.com/feed"].Title)
	require.Equal(t, "Explicit", candidates["https://example.com/titled"].Title)

	candidates = newCandidates()
	backfillTitles(candidates, pageMeta{ogTitle: "OG", heading: "H1"})
	require.Equal(t, "OG", candidates["https://example.com/feed"].Title)

	candidates = newCandidates()
	backfillTitles(candidates, pageMeta{heading: "H1"})
	require.Equal(t, "H1", candidates["https://example.com/feed"].Title)

	candidates = newCandidates()
	backfillTitles(candidates, pageMeta{})
	require.Equal(t, "example.com/feed", candidates["https://example.com/feed"].Title)
}

func TestExtractPageMetaHeadingFallsBackToTitle(t *testing.T) {
	meta := extractPageMeta(docFromString(t, `<html><head><title>Doc Title</title></head><body></body></html>`))
	require.Equal(t, "Doc Title", meta.heading)

	meta = extractPageMeta(docFromString(t, `<html><body><h1> Heading </h1></body></html>`))
	require.Equal(t, "Heading", meta.heading)
}

func TestAutoselectRespectsExistingSignal(t *testing.T) {
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/api": {Url: "https://example.com/api", Autoselect: true},
		"https://example.com/feed": {Url: "https://example.com/feed"},
	}
	autoselect(candidates)
	require.True(t, candidates["https://example.com/api"].Autoselect)
	require.False(t, candidates["https://example.com/feed"].Autoselect)
}

func TestAutoselectPrefersFeedLookingUrl(t *testing.T) {
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/about": {Url: "https://example.com/about"},
		"https://example.com/feed":  {Url: "https://example.com/feed"},
	}
	autoselect(candidates)
	require.True(t, candidates["https://example.com/feed"].Autoselect)
	require.False(t, candidates["https://example.com/about"].Autoselect)
}

func TestAutoselectPicksAtMostOne(t *testing.T) {
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/atom.xml": {Url: "https://example.com/atom.xml"},
		"https://example.com/feed":     {Url: "https://example.com/feed"},
	}
	autoselect(candidates)

	selected := 0
	for _, candidate := range candidates {
		if candidate.Autoselect {
			selected++
		}
	}
	require.Equal(t, 1, selected)
}

func TestRankAutoselectFirstThenRelation(t *testing.T) {
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/me": {
			Url: "https://example.com/me", Rel: model.RelMe, Title: "Me",
		},
		"https://example.com/self": {
			Url: "https://example.com/self", Rel: model.RelSelf, Title: "Self",
		},
		"https://example.com/alt": {
			Url: "https://example.com/alt", Rel: model.RelAlternate,
			Title: "Alt", Autoselect: true,
		},
	}
	ranked := Rank(candidates)
	require.Equal(t, "https://example.com/alt", ranked[0].Url)
	require.Equal(t, "https://example.com/self", ranked[1].Url)
	require.Equal(t, "https://example.com/me", ranked[2].Url)
}

func TestRankPrefersAlternateWhenNativePresent(t *testing.T) {
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com": {
			Url: "https://example.com", Rel: model.RelFriendsBaseUrl, Title: "Base",
		},
		"https://example.com/self": {
			Url: "https://example.com/self", Rel: model.RelSelf, Title: "Self",
		},
		"https://example.com/alt": {
			Url: "https://example.com/alt", Rel: model.RelAlternate, Title: "Alt",
		},
	}
	ranked := Rank(candidates)
	require.Equal(t, "https://example.com/alt", ranked[0].Url)
	require.Equal(t, "https://example.com/self", ranked[1].Url)
}

func TestRankTitleTiebreak(t *testing.T) {
	candidates := map[string]*model.DiscoveryCandidate{
		"https://example.com/b": {
			Url: "https://example.com/b", Rel: model.RelAlternate, Title: "Bravo",
		},
		"https://example.com/a": {
			Url: "https://example.com/a", Rel: model.RelAlternate, Title: "Alpha",
		},
	}
	ranked := Rank(candidates)
	require.Equal(t, "Alpha", ranked[0].Title)
	require.Equal(t, "Bravo", ranked[1].Title)
}

func TestMergeCandidatesFillsWithoutClobbering(t *testing.T) {
	dst := map[string]*model.DiscoveryCandidate{
		"https://example.com/feed": {
			Url: "https://example.com/feed", Rel: model.RelUnknown,
			Title: "Known", Confidence: 50, ParserSlug: parser.RssParserSlug,
		},
	}
	src := map[string]*model.DiscoveryCandidate{
		"https://example.com/feed": {
			Url: "https://example.com/feed", Rel: model.RelAlternate,
			Title: "Other", MimeType: "application/rss+xml",
			Confidence: 75, ParserSlug: parser.RssParserSlug, Autoselect: true,
		},
		"https://example.com/new": {Url: "https://example.com/new"},
	}
	mergeCandidates(dst, src)

	merged := dst["https://example.com/feed"]
	require.Equal(t, model.RelAlternate, merged.Rel)
	require.Equal(t, "Known", merged.Title)
	require.Equal(t, "application/rss+xml", merged.MimeType)
	require.Equal(t, 75, merged.Confidence)
	require.True(t, merged.Autoselect)
	require.Contains(t, dst, "https://example.com/new")
}

func TestResolveUrl(t *testing.T) {
	require.Equal(t, "https://example.com/feed", resolveUrl("https://example.com/page", "/feed"))
	require.Equal(t, "https://other.example/feed", resolveUrl("https://example.com/", "https://other.example/feed"))
}
