package parser

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"

	"github.com/friendnet-labs/friendsync/clients"
	"github.com/friendnet-labs/friendsync/model"
)

const RssParserSlug = "rss"

// MaxFeedRedirects bounds redirects when fetching a feed document.
const MaxFeedRedirects = 5

// RssParser handles RSS, Atom and JSON feeds through gofeed.
type RssParser struct {
	client *clients.HttpClient
}

func NewRssParser(client *clients.HttpClient) *RssParser {
	return &RssParser{client: client}
}

func (p *RssParser) Slug() string {
	return RssParserSlug
}

func (p *RssParser) Confidence(url string, mimeType string, rel model.FeedRelation) int {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return 0
	}

	mime := strings.ToLower(mimeType)
	switch {
	case strings.Contains(mime, "rss"), strings.Contains(mime, "atom"),
		strings.Contains(mime, "feed+json"), strings.Contains(mime, "xml"):
		return 75
	}

	lower := strings.ToLower(url)
	if strings.HasSuffix(lower, "/feed") || strings.HasSuffix(lower, "/feed/") ||
		strings.HasSuffix(lower, ".xml") || strings.Contains(lower, "rss") ||
		strings.Contains(lower, "atom") {
		return 50
	}
	if rel == model.RelAlternate {
		return 25
	}
	// generic fallback, anything http-ish might still be a feed
	return 10
}

func (p *RssParser) Fetch(ctx context.Context, url string, source *model.FeedSource) ([]*model.FeedItem, error) {
	res, err := p.client.Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch feed %s", url)
	}
	defer res.Body.Close()

	feed, err := gofeed.NewParser().Parse(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "parse feed %s", url)
	}
	return p.normalizeFeed(feed), nil
}

func (p *RssParser) normalizeFeed(feed *gofeed.Feed) []*model.FeedItem {
	items := []*model.FeedItem{}
	for _, raw := range feed.Items {
		item := p.normalizeItem(raw)
		if item == nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

func (p *RssParser) normalizeItem(raw *gofeed.Item) *model.FeedItem {
	permalink := raw.Link
	if permalink == "" {
		// some feeds only carry a guid that doubles as the link
		permalink = raw.GUID
	}
	if permalink == "" {
		return nil
	}

	content := raw.Content
	if content == "" {
		content = raw.Description
	}

	item := &model.FeedItem{
		Permalink: permalink,
		Title:     raw.Title,
		Content:   content,
		Date:      itemDate(raw),
		Metadata:  map[string]string{},
	}
	if raw.UpdatedParsed != nil {
		item.UpdatedDate = *raw.UpdatedParsed
	}
	if raw.Author != nil {
		item.Author = raw.Author.Name
	}
	if raw.GUID != "" && raw.GUID != permalink {
		item.Metadata[model.MetadataRemoteItemId] = raw.GUID
	}
	if len(raw.Categories) > 0 {
		item.Metadata["categories"] = strings.Join(raw.Categories, ",")
	}
	if ext, ok := raw.Extensions["slash"]; ok {
		if comments, ok := ext["comments"]; ok && len(comments) > 0 {
			if n, err := parseCommentCount(comments[0].Value); err == nil {
				item.CommentCount = n
			}
		}
	}
	return item
}

func itemDate(raw *gofeed.Item) time.Time {
	if raw.PublishedParsed != nil {
		return *raw.PublishedParsed
	}
	if raw.UpdatedParsed != nil {
		return *raw.UpdatedParsed
	}
	if raw.Published != "" {
		if t, err := dateparse.ParseAny(raw.Published); err == nil {
			return t
		}
	}
	return time.Now()
}

func (p *RssParser) DiscoverCandidates(pageContent string, pageUrl string) map[string]*model.DiscoveryCandidate {
	candidates := map[string]*model.DiscoveryCandidate{}
	if pageContent == "" {
		return candidates
	}

	// if the "page" is itself a feed document, report it directly
	feed, err := gofeed.NewParser().ParseString(pageContent)
	if err != nil {
		return candidates
	}
	candidates[pageUrl] = &model.DiscoveryCandidate{
		Url:        pageUrl,
		Rel:        model.RelSelf,
		MimeType:   feedMimeType(feed.FeedType),
		Title:      feed.Title,
		ParserSlug: RssParserSlug,
		Confidence: 75,
	}
	return candidates
}

func parseCommentCount(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func feedMimeType(feedType string) string {
	switch feedType {
	case "atom":
		return "application/atom+xml"
	case "json":
		return "application/feed+json"
	default:
		return "application/rss+xml"
	}
}
