// Package ingest reconciles fetched feed items into persisted content.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"

	"github.com/friendnet-labs/friendsync/config"
	"github.com/friendnet-labs/friendsync/model"
	"github.com/friendnet-labs/friendsync/rules"
	"github.com/friendnet-labs/friendsync/storage"
	"github.com/friendnet-labs/friendsync/utils"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

// TrashBacklogCap bounds the trashed-item backlog per account regardless of
// the account's retention settings.
const TrashBacklogCap = 25

// DefaultPostFormat is what the format detector yields until real
// detection heuristics exist.
const DefaultPostFormat = "standard"

type contextKey int

const forcedRefreshKey contextKey = iota

// WithForcedRefresh marks the context as an explicit manual refresh, which
// relaxes the local-edit protection during updates.
func WithForcedRefresh(ctx context.Context) context.Context {
	return context.WithValue(ctx, forcedRefreshKey, true)
}

func isForcedRefresh(ctx context.Context) bool {
	forced, _ := ctx.Value(forcedRefreshKey).(bool)
	return forced
}

// Processor is the merge/dedup engine: it turns parser output into created
// and updated content items without clobbering local edits.
type Processor struct {
	store storage.Store
	cfg   *config.Config
	sinks []RetrievalSink
}

func NewProcessor(store storage.Store, cfg *config.Config, sinks ...RetrievalSink) *Processor {
	if len(sinks) == 0 {
		sinks = []RetrievalSink{NewLogSink()}
	}
	return &Processor{store: store, cfg: cfg, sinks: sinks}
}

// ReportFailure fans a per-source fetch failure out to the sinks.
func (p *Processor) ReportFailure(source *model.FeedSource, err error) {
	for _, sink := range p.sinks {
		sink.RetrievalFailed(source, err)
	}
}

// Process reconciles one batch of fetched items for a feed source and
// returns the ids of created and updated content items. It is safe to call
// repeatedly with the same input: an unchanged batch produces empty result
// sets. Per-item failures are skipped and never abort the batch.
func (p *Processor) Process(ctx context.Context, items []*model.FeedItem, source *model.FeedSource) ([]string, []string, error) {
	account, err := p.store.GetAccount(source.AccountId)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load account %s for feed %s", source.AccountId, source.Url)
	}

	ruleContext := rules.NewRuleContext(account)

	// oldest first, so sequentially assigned ids follow publish order
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.Before(items[j].Date) })

	remoteIdx, permalinkIdx, err := p.store.DedupIndex(account.Id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "build dedup index for account %s", account.Id)
	}

	newIds := []string{}
	modifiedIds := []string{}

	for _, item := range items {
		// cheap delete check before any expensive normalization
		if ruleContext.Apply(item, false) == model.ActionDelete {
			Logger.LogV2.Debugf("item deleted by early rule pass: ", item.Permalink)
			continue
		}

		item.Permalink = NormalizePermalink(item.Permalink)
		item.Content = SanitizeContent(item.Content)

		if item.Permalink == "" || (item.Content == "" && item.Title == "") {
			Logger.LogV2.Debugf("skipping empty item from ", source.Url)
			continue
		}

		existingId := p.resolveExisting(account.Id, item, remoteIdx, permalinkIdx)
		item.IsNew = existingId == ""

		if ruleContext.Apply(item, true) == model.ActionDelete {
			Logger.LogV2.Debugf("item deleted by full rule pass: ", item.Permalink)
			continue
		}

		candidate := p.buildCandidate(item, source, account)

		if item.IsNew {
			if err := p.store.CreateContent(candidate, account.AuthorId()); err != nil {
				Logger.LogV2.Errorf("failed to create content for ", item.Permalink, err)
				continue
			}
			newIds = append(newIds, candidate.Id)
			permalinkIdx[candidate.Permalink] = candidate.Id
			if candidate.RemoteItemId != "" {
				remoteIdx[candidate.RemoteItemId] = candidate.Id
			}
			continue
		}

		modified, err := p.updateExisting(ctx, existingId, item, candidate, source, account)
		if err != nil {
			Logger.LogV2.Errorf("failed to update content ", existingId, err)
			continue
		}
		if modified {
			modifiedIds = append(modifiedIds, existingId)
		}
	}

	pruned := p.applyRetention(account)
	newIds = utils.StringsDiff(newIds, pruned)
	modifiedIds = utils.StringsDiff(modifiedIds, pruned)

	for _, sink := range p.sinks {
		sink.RetrievalCompleted(source, newIds, modifiedIds)
	}
	return newIds, modifiedIds, nil
}

// resolveExisting matches an incoming item against persisted content: by
// remote id, then by permalink, then by searching stored links directly.
// The last fallback covers content imported before remote-id tracking.
func (p *Processor) resolveExisting(accountId string, item *model.FeedItem, remoteIdx map[string]string, permalinkIdx map[string]string) string {
	if remoteId := item.RemoteItemId(); remoteId != "" {
		if id, ok := remoteIdx[remoteId]; ok {
			return id
		}
	}
	if id, ok := permalinkIdx[item.Permalink]; ok {
		return id
	}
	stored, err := p.store.ContentByStoredLink(accountId, item.Permalink)
	if err != nil || stored == nil {
		return ""
	}
	return stored.Id
}

// buildCandidate assembles the persisted representation: base fields from
// the item, overridden by any transforms the rule engine accumulated.
func (p *Processor) buildCandidate(item *model.FeedItem, source *model.FeedSource, account *model.FriendAccount) *model.ContentItem {
	candidate := &model.ContentItem{
		Id:              uuid.New().String(),
		AccountId:       account.Id,
		FeedSourceId:    source.Id,
		Title:           item.Title,
		Content:         item.Content,
		Status:          model.StatusPublished,
		PublishedAt:     item.ModifiedDate(),
		CommentCount:    item.CommentCount,
		CommentsFeedUrl: item.CommentsFeedUrl,
		Permalink:       item.Permalink,
		PostFormat:      resolvePostFormat(item, source),
		ParserSlug:      source.ParserSlug,
		AuthorOverride:  item.Author,
		RemoteItemId:    parseRemoteId(item.RemoteItemId()),
		Metadata:        datatypes.JSONMap{"source_url": source.Url},
	}

	for field, value := range item.Transforms {
		switch field {
		case "post_title":
			candidate.Title = value
		case "post_content":
			candidate.Content = value
		case "guid":
			candidate.Permalink = value
		case "author":
			candidate.AuthorOverride = value
		case model.TransformedStatusField:
			candidate.Status = model.ContentStatus(value)
		}
	}
	return candidate
}

// updateExisting applies the update path: detect a real change, honor the
// local-edit protection, and sync non-authorial comment metadata
// unconditionally. Returns whether the stored content was modified.
func (p *Processor) updateExisting(ctx context.Context, existingId string, item *model.FeedItem, candidate *model.ContentItem, source *model.FeedSource, account *model.FriendAccount) (bool, error) {
	stored, err := p.store.ContentById(existingId)
	if err != nil {
		return false, err
	}

	// content compares verbatim; title and status ignore cosmetic markup
	changed := stored.Content != candidate.Content ||
		StripMarkup(stored.Title) != StripMarkup(candidate.Title) ||
		stored.Status != candidate.Status

	modified := false
	if changed && p.updateAllowed(ctx, stored, account) {
		stored.Title = candidate.Title
		stored.Content = candidate.Content
		stored.Status = candidate.Status
		stored.PublishedAt = candidate.PublishedAt
		if err := p.store.UpdateContent(stored, account.AuthorId()); err != nil {
			return false, err
		}
		modified = true
	}

	// non-authorial retrieval metadata syncs outside the edit-protected
	// update path
	stored.PostFormat = candidate.PostFormat
	stored.ParserSlug = candidate.ParserSlug
	stored.AuthorOverride = candidate.AuthorOverride
	stored.FeedSourceId = candidate.FeedSourceId
	stored.Metadata = candidate.Metadata
	if stored.RemoteItemId == "" {
		// immutable once assigned
		stored.RemoteItemId = candidate.RemoteItemId
	}
	if err := p.store.SyncRetrievalMetadata(stored); err != nil {
		return modified, err
	}

	if stored.CommentCount != item.CommentCount || stored.CommentsFeedUrl != item.CommentsFeedUrl {
		if err := p.store.SyncCommentCount(stored.Id, item.CommentCount, item.CommentsFeedUrl); err != nil {
			return modified, err
		}
	}
	return modified, nil
}

// updateAllowed is the local-edit protection: an automated update only
// lands when every prior version was authored by the account's synthetic
// identity. A manual forced refresh overrides the guard.
func (p *Processor) updateAllowed(ctx context.Context, stored *model.ContentItem, account *model.FriendAccount) bool {
	if isForcedRefresh(ctx) {
		return true
	}
	versions, err := p.store.Versions(stored.Id)
	if err != nil {
		Logger.LogV2.Errorf("failed to load versions for ", stored.Id, err)
		return false
	}
	for _, version := range versions {
		if version.AuthorId != account.AuthorId() {
			return false
		}
	}
	return true
}

// applyRetention prunes by age, by count, and caps the trash backlog.
// Returns all pruned ids so freshly created ones can be dropped from the
// batch result.
func (p *Processor) applyRetention(account *model.FriendAccount) []string {
	pruned := []string{}

	if days := p.effectiveRetentionDays(account); days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		ids, err := p.store.DeleteContentOlderThan(account.Id, cutoff)
		if err != nil {
			Logger.LogV2.Errorf("age retention failed for account ", account.Id, err)
		}
		pruned = append(pruned, ids...)
	}

	if keep := p.effectiveRetentionCount(account); keep > 0 {
		ids, err := p.store.DeleteContentExcess(account.Id, keep)
		if err != nil {
			Logger.LogV2.Errorf("count retention failed for account ", account.Id, err)
		}
		pruned = append(pruned, ids...)
	}

	ids, err := p.store.CapTrashed(account.Id, TrashBacklogCap)
	if err != nil {
		Logger.LogV2.Errorf("trash cap failed for account ", account.Id, err)
	}
	pruned = append(pruned, ids...)

	return pruned
}

func (p *Processor) effectiveRetentionDays(account *model.FriendAccount) int {
	if account.RetentionDaysEnabled && account.RetentionDays > 0 {
		return account.RetentionDays
	}
	if account.RetentionDaysEnabled {
		return p.cfg.RetentionDays
	}
	return 0
}

func (p *Processor) effectiveRetentionCount(account *model.FriendAccount) int {
	if account.RetentionCountEnabled && account.RetentionCount > 0 {
		return account.RetentionCount
	}
	if account.RetentionCountEnabled {
		return p.cfg.RetentionCount
	}
	return 0
}

// resolvePostFormat: an explicit feed setting wins; autodetect falls back
// to the item's own detected format and finally the default detector.
func resolvePostFormat(item *model.FeedItem, source *model.FeedSource) string {
	if source.PostFormat != "" && source.PostFormat != model.PostFormatAutodetect {
		return source.PostFormat
	}
	if item.PostFormat != "" {
		return item.PostFormat
	}
	return detectPostFormat(item)
}

// detectPostFormat is a future-extensible detector. It currently always
// classifies items as the default format.
func detectPostFormat(item *model.FeedItem) string {
	return DefaultPostFormat
}

// parseRemoteId keeps only numeric/parseable remote identifiers; anything
// else is dropped in favor of permalink-based dedup.
func parseRemoteId(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		return ""
	}
	return raw
}

// LastLogLine formats the per-source log line reflecting a poll outcome.
func LastLogLine(newCount int, modifiedCount int, err error) string {
	now := time.Now().Format(time.RFC3339)
	if err != nil {
		return fmt.Sprintf("%s error: %v", now, err)
	}
	return fmt.Sprintf("%s ok: %d new, %d modified", now, newCount, modifiedCount)
}
