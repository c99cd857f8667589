// Package discovery finds and ranks candidate feeds for a seed URL.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/friendnet-labs/friendsync/clients"
	"github.com/friendnet-labs/friendsync/config"
	"github.com/friendnet-labs/friendsync/model"
	"github.com/friendnet-labs/friendsync/parser"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

// MaxDiscoveryRedirects bounds redirects when fetching the seed page.
const MaxDiscoveryRedirects = 2

// ConfidenceFilter can override a parser's confidence for a candidate.
// Returning the score unchanged is the common case.
type ConfidenceFilter func(p parser.Parser, candidate *model.DiscoveryCandidate, score int) int

type Discoverer struct {
	registry *parser.Registry
	client   *resty.Client

	// Filter, when set, post-processes every parser confidence score.
	Filter ConfidenceFilter
}

func NewDiscoverer(registry *parser.Registry, cfg *config.Config) *Discoverer {
	client := resty.New().
		SetTimeout(clients.FetchTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(MaxDiscoveryRedirects)).
		SetHeader("User-Agent", cfg.UserAgent)
	return &Discoverer{registry: registry, client: client}
}

// pageMeta carries the page-level metadata used to backfill missing
// candidate titles, in backfill priority order.
type pageMeta struct {
	siteName string
	ogTitle  string
	heading  string
}

// DiscoverFeeds fetches the seed page and returns candidate feeds keyed by
// URL. An unreachable seed yields an empty set rather than an error;
// parser-level discovery still runs against the empty content.
func (d *Discoverer) DiscoverFeeds(ctx context.Context, seedUrl string) map[string]*model.DiscoveryCandidate {
	pageContent := ""
	var headerLinks []string

	res, err := d.client.R().SetContext(ctx).Get(seedUrl)
	if err != nil {
		Logger.LogV2.Debugf("discovery fetch failed for ", seedUrl, err)
	} else if res.StatusCode() >= 300 {
		Logger.LogV2.Debugf("discovery got status ", res.StatusCode(), " for ", seedUrl)
	} else {
		pageContent = res.String()
		headerLinks = res.Header().Values("Link")
	}

	candidates := map[string]*model.DiscoveryCandidate{}
	meta := pageMeta{}

	if pageContent != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageContent))
		if err == nil {
			mergeCandidates(candidates, extractLinkRels(doc, seedUrl))
			meta = extractPageMeta(doc)
		}
	}
	mergeCandidates(candidates, parseLinkHeaders(headerLinks, seedUrl))

	for _, p := range d.registry.All() {
		mergeCandidates(candidates, p.DiscoverCandidates(pageContent, seedUrl))
	}

	d.scoreCandidates(candidates)
	backfillTitles(candidates, meta)
	autoselect(candidates)

	return candidates
}

// scoreCandidates picks the highest-confidence parser per candidate. The
// reserved friends-base-url relation force-selects the native parser at max
// confidence: the remote site natively speaks the protocol. Candidates no
// parser can handle are dropped.
func (d *Discoverer) scoreCandidates(candidates map[string]*model.DiscoveryCandidate) {
	for key, candidate := range candidates {
		if candidate.Rel == model.RelFriendsBaseUrl {
			candidate.ParserSlug = parser.NativeParserSlug
			candidate.Confidence = parser.MaxConfidence
			continue
		}
		for _, p := range d.registry.All() {
			score := p.Confidence(candidate.Url, candidate.MimeType, candidate.Rel)
			if d.Filter != nil {
				score = d.Filter(p, candidate, score)
			}
			if score > candidate.Confidence {
				candidate.Confidence = score
				candidate.ParserSlug = p.Slug()
			}
		}
		if candidate.ParserSlug == "" {
			delete(candidates, key)
		}
	}
}

// extractLinkRels pulls <link rel> and microformat-style <a rel> candidates
// out of the page, resolving relative hrefs against the seed URL.
func extractLinkRels(doc *goquery.Document, baseUrl string) map[string]*model.DiscoveryCandidate {
	candidates := map[string]*model.DiscoveryCandidate{}
	collect := func(i int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		resolved := resolveUrl(baseUrl, href)
		if resolved == "" {
			return
		}
		rel := parseRelation(sel.AttrOr("rel", ""))
		if rel == model.RelUnknown && sel.Is("a") {
			// anchors only matter for explicit relations
			return
		}
		candidates[resolved] = &model.DiscoveryCandidate{
			Url:      resolved,
			Rel:      rel,
			MimeType: sel.AttrOr("type", ""),
			Title:    sel.AttrOr("title", ""),
		}
	}
	doc.Find("link[rel]").Each(collect)
	doc.Find("a[rel]").Each(collect)
	return candidates
}

// parseLinkHeaders parses HTTP Link response headers of the form
// <url>; rel="alternate"; type="application/rss+xml"; title="..."
func parseLinkHeaders(headers []string, baseUrl string) map[string]*model.DiscoveryCandidate {
	candidates := map[string]*model.DiscoveryCandidate{}
	for _, header := range headers {
		for _, part := range strings.Split(header, ",") {
			candidate := parseLinkHeaderValue(strings.TrimSpace(part), baseUrl)
			if candidate != nil {
				candidates[candidate.Url] = candidate
			}
		}
	}
	return candidates
}

func parseLinkHeaderValue(value string, baseUrl string) *model.DiscoveryCandidate {
	if !strings.HasPrefix(value, "<") {
		return nil
	}
	end := strings.Index(value, ">")
	if end < 0 {
		return nil
	}
	resolved := resolveUrl(baseUrl, value[1:end])
	if resolved == "" {
		return nil
	}

	candidate := &model.DiscoveryCandidate{Url: resolved, Rel: model.RelUnknown}
	for _, param := range strings.Split(value[end+1:], ";") {
		kv := strings.SplitN(strings.TrimSpace(param), "=", 2)
		if len(kv) != 2 {
			continue
		}
		val := strings.Trim(kv[1], `"`)
		switch strings.ToLower(kv[0]) {
		case "rel":
			candidate.Rel = parseRelation(val)
		case "type":
			candidate.MimeType = val
		case "title":
			candidate.Title = val
		}
	}
	return candidate
}

func parseRelation(rel string) model.FeedRelation {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		switch model.FeedRelation(r) {
		case model.RelSelf, model.RelAlternate, model.RelMe, model.RelFriendsBaseUrl:
			return model.FeedRelation(r)
		}
	}
	return model.RelUnknown
}

func extractPageMeta(doc *goquery.Document) pageMeta {
	meta := pageMeta{
		siteName: doc.Find(`meta[property="og:site_name"]`).AttrOr("content", ""),
		ogTitle:  doc.Find(`meta[property="og:title"]`).AttrOr("content", ""),
	}
	meta.heading = strings.TrimSpace(doc.Find("h1").First().Text())
	if meta.heading == "" {
		meta.heading = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return meta
}

// backfillTitles fills missing candidate titles from page metadata (site
// name, then og:title, then the page heading) with host+path as the last
// resort.
func backfillTitles(candidates map[string]*model.DiscoveryCandidate, meta pageMeta) {
	for _, candidate := range candidates {
		if candidate.Title != "" {
			continue
		}
		switch {
		case meta.siteName != "":
			candidate.Title = meta.siteName
		case meta.ogTitle != "":
			candidate.Title = meta.ogTitle
		case meta.heading != "":
			candidate.Title = meta.heading
		default:
			candidate.Title = hostAndPath(candidate.Url)
		}
	}
}

// autoselect marks exactly one candidate as the likely best feed. A parser
// that already signaled autoselect is respected; otherwise a feed-looking
// URL path wins; otherwise an alternate RSS feed at the bare /feed path.
func autoselect(candidates map[string]*model.DiscoveryCandidate) {
	ordered := orderedByUrl(candidates)
	for _, candidate := range ordered {
		if candidate.Autoselect {
			return
		}
	}
	for _, candidate := range ordered {
		path := urlPath(candidate.Url)
		if strings.HasSuffix(path, "/feed") || strings.HasSuffix(path, ".xml") ||
			strings.HasSuffix(path, "rss") {
			candidate.Autoselect = true
			return
		}
	}
	for _, candidate := range ordered {
		if candidate.Rel == model.RelAlternate &&
			strings.Contains(candidate.MimeType, "rss") &&
			urlPath(candidate.Url) == "/feed" {
			candidate.Autoselect = true
			return
		}
	}
}

// Rank orders candidates for display: the autoselected candidate first,
// then by relation preference, ties broken by case-sensitive title. When a
// protocol-native feed was discovered a structured feed beats generic link
// discovery, so alternate outranks self.
func Rank(candidates map[string]*model.DiscoveryCandidate) []*model.DiscoveryCandidate {
	hasNative := false
	for _, candidate := range candidates {
		if candidate.Rel == model.RelFriendsBaseUrl {
			hasNative = true
			break
		}
	}

	preference := []model.FeedRelation{model.RelSelf, model.RelAlternate, model.RelMe}
	if hasNative {
		preference = []model.FeedRelation{model.RelAlternate, model.RelSelf, model.RelMe}
	}
	relRank := func(rel model.FeedRelation) int {
		for i, r := range preference {
			if rel == r {
				return i
			}
		}
		return len(preference)
	}

	ordered := orderedByUrl(candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Autoselect != b.Autoselect {
			return a.Autoselect
		}
		if relRank(a.Rel) != relRank(b.Rel) {
			return relRank(a.Rel) < relRank(b.Rel)
		}
		return a.Title < b.Title
	})
	return ordered
}

// mergeCandidates folds src into dst, preferring higher confidence and
// filling empty fields rather than clobbering known ones.
func mergeCandidates(dst map[string]*model.DiscoveryCandidate, src map[string]*model.DiscoveryCandidate) {
	for key, candidate := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = candidate
			continue
		}
		if candidate.Confidence > existing.Confidence {
			existing.Confidence = candidate.Confidence
			existing.ParserSlug = candidate.ParserSlug
		}
		if existing.Rel == model.RelUnknown && candidate.Rel != model.RelUnknown {
			existing.Rel = candidate.Rel
		}
		if existing.Title == "" {
			existing.Title = candidate.Title
		}
		if existing.MimeType == "" {
			existing.MimeType = candidate.MimeType
		}
		if candidate.Autoselect {
			existing.Autoselect = true
		}
	}
}

func orderedByUrl(candidates map[string]*model.DiscoveryCandidate) []*model.DiscoveryCandidate {
	ordered := make([]*model.DiscoveryCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		ordered = append(ordered, candidate)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Url < ordered[j].Url })
	return ordered
}

func resolveUrl(base string, href string) string {
	baseUrl, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseUrl.ResolveReference(ref).String()
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}

func hostAndPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%s%s", u.Host, u.Path)
}
