package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*

ContentItem is the locally persisted cached copy of one remote item.

AccountId: owning FriendAccount
FeedSourceId: feed source this item was retrieved from
Status: published, private or trash
RemoteItemId: parser-specific remote identifier, immutable once assigned
Permalink: remote permalink, indexed for deduplication
AuthorOverride: author name override reported by the feed
Versions: ordered version history, each stamped with an author identity

*/

type ContentStatus string

const (
	StatusPublished ContentStatus = "published"
	StatusPrivate   ContentStatus = "private"
	StatusTrash     ContentStatus = "trash"
)

type ContentItem struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt

	AccountId    string `gorm:"index"`
	FeedSourceId string

	Title       string
	Content     string
	Status      ContentStatus
	PublishedAt time.Time

	CommentCount    int
	CommentsFeedUrl string

	RemoteItemId string `gorm:"index"`
	Permalink    string `gorm:"index"`

	PostFormat     string
	ParserSlug     string
	AuthorOverride string

	Metadata datatypes.JSONMap

	Versions []ContentVersion `json:"versions" gorm:"foreignKey:ContentItemId;constraint:OnDelete:CASCADE;"`
}

/*

ContentVersion is one entry in a ContentItem's version history.

AuthorId: identity that produced this version. Automated retrievals use the
owning account's synthetic author id, so any other value marks a local
human edit.

*/

type ContentVersion struct {
	Id            string `gorm:"primaryKey"`
	ContentItemId string `gorm:"index"`
	AuthorId      string
	CreatedAt     time.Time

	Title   string
	Content string
}
