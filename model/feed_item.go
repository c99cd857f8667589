package model

import "time"

/*

FeedItem is the ephemeral, parser-normalized representation of one remote
entry before reconciliation. It is never persisted directly; the merge
engine turns it into a ContentItem.

Permalink: required, the unique-ish identity of the item within its feed
Metadata: arbitrary parser-specific key/value pairs; the well-known key
"remote_item_id" carries the parser's own identifier for the item

IsNew, Transforms and Deleted are transient fields attached by the rule and
merge engines during processing.

*/

const MetadataRemoteItemId = "remote_item_id"

type FeedItem struct {
	Permalink       string
	Title           string
	Content         string
	Date            time.Time
	UpdatedDate     time.Time
	Author          string
	CommentCount    int
	CommentsFeedUrl string
	PostFormat      string
	Metadata        map[string]string

	IsNew      bool
	Transforms map[string]string
	Deleted    bool
}

func (i *FeedItem) RemoteItemId() string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[MetadataRemoteItemId]
}

// ModifiedDate is the timestamp the persisted copy should carry: the
// updated date when the feed reports one, the publish date otherwise.
func (i *FeedItem) ModifiedDate() time.Time {
	if !i.UpdatedDate.IsZero() {
		return i.UpdatedDate
	}
	return i.Date
}
