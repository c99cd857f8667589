package ingest

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/friendnet-labs/friendsync/model"
)

// fakeStore is an in-memory Store for engine tests.
type fakeStore struct {
	accounts map[string]*model.FriendAccount
	items    map[string]*model.ContentItem
	versions map[string][]model.ContentVersion
}

func newFakeStore(accounts ...*model.FriendAccount) *fakeStore {
	s := &fakeStore{
		accounts: map[string]*model.FriendAccount{},
		items:    map[string]*model.ContentItem{},
		versions: map[string][]model.ContentVersion{},
	}
	for _, account := range accounts {
		s.accounts[account.Id] = account
	}
	return s
}

func (s *fakeStore) GetAccount(id string) (*model.FriendAccount, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	return account, nil
}

func (s *fakeStore) GetActiveFeedSources() ([]*model.FeedSource, error) {
	return nil, nil
}

func (s *fakeStore) SaveFeedSourceScheduling(source *model.FeedSource) error {
	return nil
}

func (s *fakeStore) ContentByStoredLink(accountId string, link string) (*model.ContentItem, error) {
	for _, item := range s.items {
		if item.AccountId == accountId && item.Permalink == link {
			return item, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ContentById(id string) (*model.ContentItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("content %s not found", id)
	}
	copied := *item
	return &copied, nil
}

func (s *fakeStore) DedupIndex(accountId string) (map[string]string, map[string]string, error) {
	remoteIdx := map[string]string{}
	permalinkIdx := map[string]string{}
	for _, item := range s.items {
		if item.AccountId != accountId {
			continue
		}
		if item.RemoteItemId != "" {
			remoteIdx[item.RemoteItemId] = item.Id
		}
		if item.Permalink != "" {
			permalinkIdx[item.Permalink] = item.Id
		}
	}
	return remoteIdx, permalinkIdx, nil
}

func (s *fakeStore) CreateContent(item *model.ContentItem, authorId string) error {
	if item.Id == "" {
		item.Id = uuid.New().String()
	}
	copied := *item
	s.items[item.Id] = &copied
	s.versions[item.Id] = []model.ContentVersion{{
		Id:            uuid.New().String(),
		ContentItemId: item.Id,
		AuthorId:      authorId,
		CreatedAt:     time.Now(),
		Title:         item.Title,
		Content:       item.Content,
	}}
	return nil
}

func (s *fakeStore) UpdateContent(item *model.ContentItem, authorId string) error {
	stored, ok := s.items[item.Id]
	if !ok {
		return fmt.Errorf("content %s not found", item.Id)
	}
	stored.Title = item.Title
	stored.Content = item.Content
	stored.Status = item.Status
	stored.PublishedAt = item.PublishedAt
	s.versions[item.Id] = append(s.versions[item.Id], model.ContentVersion{
		Id:            uuid.New().String(),
		ContentItemId: item.Id,
		AuthorId:      authorId,
		CreatedAt:     time.Now(),
		Title:         item.Title,
		Content:       item.Content,
	})
	return nil
}

func (s *fakeStore) SyncRetrievalMetadata(item *model.ContentItem) error {
	stored, ok := s.items[item.Id]
	if !ok {
		return fmt.Errorf("content %s not found", item.Id)
	}
	stored.PostFormat = item.PostFormat
	stored.ParserSlug = item.ParserSlug
	stored.AuthorOverride = item.AuthorOverride
	stored.RemoteItemId = item.RemoteItemId
	stored.FeedSourceId = item.FeedSourceId
	stored.Metadata = item.Metadata
	return nil
}

func (s *fakeStore) Versions(contentItemId string) ([]model.ContentVersion, error) {
	return s.versions[contentItemId], nil
}

func (s *fakeStore) SyncCommentCount(contentItemId string, count int, commentsFeedUrl string) error {
	stored, ok := s.items[contentItemId]
	if !ok {
		return fmt.Errorf("content %s not found", contentItemId)
	}
	stored.CommentCount = count
	stored.CommentsFeedUrl = commentsFeedUrl
	return nil
}

func (s *fakeStore) DeleteContentOlderThan(accountId string, cutoff time.Time) ([]string, error) {
	deleted := []string{}
	for id, item := range s.items {
		if item.AccountId == accountId && item.PublishedAt.Before(cutoff) {
			deleted = append(deleted, id)
		}
	}
	s.remove(deleted)
	return deleted, nil
}

func (s *fakeStore) DeleteContentExcess(accountId string, keep int) ([]string, error) {
	ordered := s.accountItemsNewestFirst(accountId, "")
	deleted := []string{}
	for i, item := range ordered {
		if i >= keep {
			deleted = append(deleted, item.Id)
		}
	}
	s.remove(deleted)
	return deleted, nil
}

func (s *fakeStore) CapTrashed(accountId string, cap int) ([]string, error) {
	ordered := s.accountItemsNewestFirst(accountId, model.StatusTrash)
	deleted := []string{}
	for i, item := range ordered {
		if i >= cap {
			deleted = append(deleted, item.Id)
		}
	}
	s.remove(deleted)
	return deleted, nil
}

func (s *fakeStore) accountItemsNewestFirst(accountId string, status model.ContentStatus) []*model.ContentItem {
	ordered := []*model.ContentItem{}
	for _, item := range s.items {
		if item.AccountId != accountId {
			continue
		}
		if status != "" && item.Status != status {
			continue
		}
		ordered = append(ordered, item)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].PublishedAt.After(ordered[j].PublishedAt)
	})
	return ordered
}

func (s *fakeStore) remove(ids []string) {
	for _, id := range ids {
		delete(s.items, id)
		delete(s.versions, id)
	}
}
