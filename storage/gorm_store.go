package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/friendnet-labs/friendsync/model"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ConnectDB opens the Postgres connection and migrates the schema.
func ConnectDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "connect database")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.FriendAccount{},
		&model.FeedRule{},
		&model.FeedSource{},
		&model.ContentItem{},
		&model.ContentVersion{},
	)
}

func (s *GormStore) GetAccount(id string) (*model.FriendAccount, error) {
	account := &model.FriendAccount{}
	result := s.db.
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", id).
		First(account)
	if result.Error != nil {
		return nil, result.Error
	}
	return account, nil
}

func (s *GormStore) GetActiveFeedSources() ([]*model.FeedSource, error) {
	var sources []*model.FeedSource
	if err := s.db.Where("active = ?", true).Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (s *GormStore) SaveFeedSourceScheduling(source *model.FeedSource) error {
	return s.db.Model(source).Updates(map[string]interface{}{
		"polling_interval":  source.PollingInterval,
		"last_poll_started": source.LastPollStarted,
		"next_poll":         source.NextPoll,
		"last_log":          source.LastLog,
	}).Error
}

func (s *GormStore) ContentByStoredLink(accountId string, link string) (*model.ContentItem, error) {
	item := &model.ContentItem{}
	result := s.db.
		Where("account_id = ? AND permalink = ?", accountId, link).
		First(item)
	if result.RowsAffected == 0 {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return item, nil
}

func (s *GormStore) ContentById(id string) (*model.ContentItem, error) {
	item := &model.ContentItem{}
	result := s.db.Where("id = ?", id).First(item)
	if result.Error != nil {
		return nil, result.Error
	}
	return item, nil
}

func (s *GormStore) DedupIndex(accountId string) (map[string]string, map[string]string, error) {
	var rows []struct {
		Id           string
		RemoteItemId string
		Permalink    string
	}
	err := s.db.Model(&model.ContentItem{}).
		Select("id", "remote_item_id", "permalink").
		Where("account_id = ?", accountId).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	remoteIdx := map[string]string{}
	permalinkIdx := map[string]string{}
	for _, row := range rows {
		if row.RemoteItemId != "" {
			remoteIdx[row.RemoteItemId] = row.Id
		}
		if row.Permalink != "" {
			permalinkIdx[row.Permalink] = row.Id
		}
	}
	return remoteIdx, permalinkIdx, nil
}

func (s *GormStore) CreateContent(item *model.ContentItem, authorId string) error {
	if item.Id == "" {
		item.Id = uuid.New().String()
	}
	item.Versions = []model.ContentVersion{{
		Id:       uuid.New().String(),
		AuthorId: authorId,
		Title:    item.Title,
		Content:  item.Content,
	}}
	result := s.db.Create(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return fmt.Errorf("failed to create content item: %+v", item)
	}
	return nil
}

func (s *GormStore) UpdateContent(item *model.ContentItem, authorId string) error {
	if err := s.db.Model(item).Updates(map[string]interface{}{
		"title":        item.Title,
		"content":      item.Content,
		"status":       item.Status,
		"published_at": item.PublishedAt,
	}).Error; err != nil {
		return err
	}
	version := &model.ContentVersion{
		Id:            uuid.New().String(),
		ContentItemId: item.Id,
		AuthorId:      authorId,
		Title:         item.Title,
		Content:       item.Content,
	}
	return s.db.Create(version).Error
}

func (s *GormStore) SyncRetrievalMetadata(item *model.ContentItem) error {
	return s.db.Model(&model.ContentItem{}).
		Where("id = ?", item.Id).
		Updates(map[string]interface{}{
			"post_format":     item.PostFormat,
			"parser_slug":     item.ParserSlug,
			"author_override": item.AuthorOverride,
			"remote_item_id":  item.RemoteItemId,
			"feed_source_id":  item.FeedSourceId,
			"metadata":        item.Metadata,
		}).Error
}

func (s *GormStore) Versions(contentItemId string) ([]model.ContentVersion, error) {
	var versions []model.ContentVersion
	err := s.db.
		Where("content_item_id = ?", contentItemId).
		Order("created_at").
		Find(&versions).Error
	return versions, err
}

func (s *GormStore) SyncCommentCount(contentItemId string, count int, commentsFeedUrl string) error {
	return s.db.Model(&model.ContentItem{}).
		Where("id = ?", contentItemId).
		Updates(map[string]interface{}{
			"comment_count":     count,
			"comments_feed_url": commentsFeedUrl,
		}).Error
}

func (s *GormStore) DeleteContentOlderThan(accountId string, cutoff time.Time) ([]string, error) {
	ids, err := s.collectIds(s.db.Model(&model.ContentItem{}).
		Where("account_id = ? AND published_at < ?", accountId, cutoff))
	if err != nil {
		return nil, err
	}
	return ids, s.deleteByIds(ids)
}

func (s *GormStore) DeleteContentExcess(accountId string, keep int) ([]string, error) {
	ids, err := s.collectIds(s.db.Model(&model.ContentItem{}).
		Where("account_id = ?", accountId).
		Order("published_at desc").
		Offset(keep))
	if err != nil {
		return nil, err
	}
	return ids, s.deleteByIds(ids)
}

func (s *GormStore) CapTrashed(accountId string, cap int) ([]string, error) {
	ids, err := s.collectIds(s.db.Model(&model.ContentItem{}).
		Where("account_id = ? AND status = ?", accountId, model.StatusTrash).
		Order("published_at desc").
		Offset(cap))
	if err != nil {
		return nil, err
	}
	return ids, s.deleteByIds(ids)
}

func (s *GormStore) collectIds(query *gorm.DB) ([]string, error) {
	var ids []string
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *GormStore) deleteByIds(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Where("id IN ?", ids).Delete(&model.ContentItem{}).Error
}
