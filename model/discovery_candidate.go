package model

/*

DiscoveryCandidate is the ephemeral result of feed discovery for one
candidate URL: where the candidate came from (link relation), which parser
should handle it and with what confidence, and whether the discovery engine
auto-selected it as the likely best feed.

*/

type FeedRelation string

const (
	RelSelf           FeedRelation = "self"
	RelAlternate      FeedRelation = "alternate"
	RelMe             FeedRelation = "me"
	RelFriendsBaseUrl FeedRelation = "friends-base-url"
	RelUnknown        FeedRelation = "unknown"
)

type DiscoveryCandidate struct {
	Url        string
	Rel        FeedRelation
	MimeType   string
	Title      string
	ParserSlug string
	Confidence int
	Autoselect bool
}
