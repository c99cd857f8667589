package parser

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/pkg/errors"

	"github.com/friendnet-labs/friendsync/clients"
	"github.com/friendnet-labs/friendsync/model"
)

const NativeParserSlug = "friends-native"

// nativeFeedPath is the conventional feed endpoint a protocol-native site
// exposes under its announced base URL.
const nativeFeedPath = "/feed/json"

// nativePost is the wire shape of one entry in a protocol-native feed.
type nativePost struct {
	Id              int64  `json:"id"`
	Permalink       string `json:"url"`
	Title           string `json:"title"`
	Content         string `json:"content_html"`
	Date            string `json:"date_published"`
	Updated         string `json:"date_modified"`
	Author          string `json:"author"`
	CommentCount    int    `json:"comment_count"`
	CommentsFeedUrl string `json:"comments_feed_url"`
	PostFormat      string `json:"post_format"`
}

type nativeFeed struct {
	Items []nativePost `json:"items"`
}

// NativeParser fetches the JSON feed a protocol-native friend site serves.
// A friends-base-url relation in discovery means the remote site speaks the
// protocol, so this parser claims such candidates with max confidence.
type NativeParser struct {
	client *clients.HttpClient
}

func NewNativeParser(client *clients.HttpClient) *NativeParser {
	return &NativeParser{client: client}
}

func (p *NativeParser) Slug() string {
	return NativeParserSlug
}

func (p *NativeParser) Confidence(url string, mimeType string, rel model.FeedRelation) int {
	if rel == model.RelFriendsBaseUrl {
		return MaxConfidence
	}
	if strings.Contains(strings.ToLower(mimeType), "json") && strings.Contains(url, nativeFeedPath) {
		return 80
	}
	return 0
}

func (p *NativeParser) Fetch(ctx context.Context, url string, source *model.FeedSource) ([]*model.FeedItem, error) {
	res, err := p.client.Get(feedEndpoint(url))
	if err != nil {
		return nil, errors.Wrapf(err, "fetch native feed %s", url)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read native feed body")
	}

	feed := &nativeFeed{}
	if err := json.Unmarshal(body, feed); err != nil {
		return nil, errors.Wrapf(err, "parse native feed %s", url)
	}

	items := []*model.FeedItem{}
	for _, post := range feed.Items {
		if post.Permalink == "" {
			continue
		}
		item := &model.FeedItem{
			Permalink:       post.Permalink,
			Title:           post.Title,
			Content:         post.Content,
			Author:          post.Author,
			CommentCount:    post.CommentCount,
			CommentsFeedUrl: post.CommentsFeedUrl,
			PostFormat:      post.PostFormat,
			Metadata: map[string]string{
				model.MetadataRemoteItemId: strconv.FormatInt(post.Id, 10),
			},
		}
		if t, err := dateparse.ParseAny(post.Date); err == nil {
			item.Date = t
		}
		if t, err := dateparse.ParseAny(post.Updated); err == nil {
			item.UpdatedDate = t
		}
		items = append(items, item)
	}
	return items, nil
}

// feedEndpoint appends the conventional feed path when the source URL is a
// bare base URL announced via friends-base-url.
func feedEndpoint(url string) string {
	if strings.Contains(url, nativeFeedPath) {
		return url
	}
	return strings.TrimRight(url, "/") + nativeFeedPath
}

// DiscoverCandidates scans the page for a friends-base-url announcement and
// reports the feed endpoint derived from it. The endpoint usually differs
// from any URL the page links directly.
func (p *NativeParser) DiscoverCandidates(pageContent string, pageUrl string) map[string]*model.DiscoveryCandidate {
	candidates := map[string]*model.DiscoveryCandidate{}
	if pageContent == "" {
		return candidates
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageContent))
	if err != nil {
		return candidates
	}
	doc.Find("link[rel='friends-base-url']").Each(func(i int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		candidates[href] = &model.DiscoveryCandidate{
			Url:        href,
			Rel:        model.RelFriendsBaseUrl,
			MimeType:   "application/json",
			Title:      sel.AttrOr("title", ""),
			ParserSlug: NativeParserSlug,
			Confidence: MaxConfidence,
		}
	})
	return candidates
}
