// Package storage persists accounts, feed sources and content items.
package storage

import (
	"time"

	"github.com/friendnet-labs/friendsync/model"
)

// Store is the persistence boundary the sync engine consumes. The gorm
// implementation below is the production one; tests substitute in-memory
// fakes.
type Store interface {
	GetAccount(id string) (*model.FriendAccount, error)

	GetActiveFeedSources() ([]*model.FeedSource, error)
	// SaveFeedSourceScheduling persists only the scheduling metadata and
	// last-log line of a source, mutated by every poll cycle.
	SaveFeedSourceScheduling(source *model.FeedSource) error

	ContentByStoredLink(accountId string, link string) (*model.ContentItem, error)
	ContentById(id string) (*model.ContentItem, error)
	// DedupIndex builds the per-account lookup maps fresh: remote id to
	// content id and permalink to content id.
	DedupIndex(accountId string) (map[string]string, map[string]string, error)

	CreateContent(item *model.ContentItem, authorId string) error
	UpdateContent(item *model.ContentItem, authorId string) error
	// SyncRetrievalMetadata persists the non-authorial retrieval fields
	// (post format, parser slug, author override, remote id, feed
	// association, source metadata) without touching version history.
	SyncRetrievalMetadata(item *model.ContentItem) error
	Versions(contentItemId string) ([]model.ContentVersion, error)
	// SyncCommentCount updates comment metadata at the storage layer,
	// bypassing version history: comment counts are not authorial data
	// and must always reflect the remote truth.
	SyncCommentCount(contentItemId string, count int, commentsFeedUrl string) error

	DeleteContentOlderThan(accountId string, cutoff time.Time) ([]string, error)
	// DeleteContentExcess removes the oldest items beyond keep, returning
	// the deleted ids.
	DeleteContentExcess(accountId string, keep int) ([]string, error)
	CapTrashed(accountId string, cap int) ([]string, error)
}
