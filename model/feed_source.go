package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*

FeedSource is a data model for one polled feed URL belonging to exactly one
FriendAccount. An account may have several feed sources; one is primary.

Url: the feed URL, also its identity key (unique per account)
ParserSlug: which registered parser handles this feed
MimeType: declared or overridden mime type of the feed
PostFormat: target post format for items, or "autodetect"
PollingInterval: seconds between polls, clamped to [1 hour, 1 week]
IntervalModifier: percentage growth applied on every completed poll cycle,
clamped to [100, 500]
LastPollStarted / NextPoll: scheduling metadata mutated by every poll cycle
LastLog: free-text line describing the most recent poll outcome

*/

const PostFormatAutodetect = "autodetect"

type FeedSource struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt

	AccountId string `gorm:"index:idx_feed_sources_account_url,unique"`
	Url       string `gorm:"index:idx_feed_sources_account_url,unique"`

	ParserSlug string
	MimeType   string
	Title      string
	Active     bool
	IsPrimary  bool
	PostFormat string

	PollingInterval  int
	IntervalModifier int

	LastPollStarted time.Time
	NextPoll        time.Time
	LastLog         string

	Metadata datatypes.JSONMap
}
