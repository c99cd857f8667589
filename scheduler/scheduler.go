// Package scheduler decides which feed sources are due and runs poll passes.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/friendnet-labs/friendsync/ingest"
	"github.com/friendnet-labs/friendsync/model"
	"github.com/friendnet-labs/friendsync/parser"
	"github.com/friendnet-labs/friendsync/storage"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

const (
	// MinPollingInterval and MaxPollingInterval clamp the adaptive
	// interval.
	MinPollingInterval = time.Hour
	MaxPollingInterval = 7 * 24 * time.Hour

	// PollBacktrack is subtracted from every computed next-poll time so a
	// periodic job running slightly late still catches feeds promptly.
	PollBacktrack = 600 * time.Second

	// PollExclusionWindow is the weak mutual-exclusion window: a source
	// whose poll started inside this window is not handed out again.
	// This is a timestamp heuristic, not a lock; two schedulers racing
	// inside the same second can both pass the check.
	PollExclusionWindow = 60 * time.Second

	MinIntervalModifier = 100
	MaxIntervalModifier = 500
)

// IsDue reports whether the source's next poll time has passed.
func IsDue(source *model.FeedSource, now time.Time) bool {
	return !now.Before(source.NextPoll)
}

// CanPollNow reports whether the source is due and no poll started inside
// the exclusion window.
func CanPollNow(source *model.FeedSource, now time.Time) bool {
	return IsDue(source, now) && source.LastPollStarted.Before(now.Add(-PollExclusionWindow))
}

// MarkPolling records the poll start time.
func MarkPolling(source *model.FeedSource, now time.Time) {
	source.LastPollStarted = now
}

// Complete grows the polling interval by the source's modifier and
// schedules the next poll. Growth applies on success and failure alike: a
// consistently failing feed is polled less often over time, which is
// deliberate throttling rather than an error-path distinction.
func Complete(source *model.FeedSource, now time.Time) {
	interval := EffectiveInterval(source)
	modifier := clampInt(source.IntervalModifier, MinIntervalModifier, MaxIntervalModifier)

	interval = interval * time.Duration(modifier) / 100
	interval = clampDuration(interval, MinPollingInterval, MaxPollingInterval)

	source.PollingInterval = int(interval / time.Second)
	source.NextPoll = now.Add(interval - PollBacktrack)
}

// EffectiveInterval reads the source's interval with clamping applied, so
// out-of-range stored values never leak into scheduling math.
func EffectiveInterval(source *model.FeedSource) time.Duration {
	interval := time.Duration(source.PollingInterval) * time.Second
	return clampDuration(interval, MinPollingInterval, MaxPollingInterval)
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampDuration(v time.Duration, min time.Duration, max time.Duration) time.Duration {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

type Scheduler struct {
	store     storage.Store
	registry  *parser.Registry
	processor *ingest.Processor
}

func NewScheduler(store storage.Store, registry *parser.Registry, processor *ingest.Processor) *Scheduler {
	return &Scheduler{store: store, registry: registry, processor: processor}
}

// DueSources collects pollable sources across all accounts, oldest due
// first for starvation-resistant fairness.
func (s *Scheduler) DueSources(now time.Time) ([]*model.FeedSource, error) {
	sources, err := s.store.GetActiveFeedSources()
	if err != nil {
		return nil, errors.Wrap(err, "load active feed sources")
	}

	due := []*model.FeedSource{}
	for _, source := range sources {
		if CanPollNow(source, now) {
			due = append(due, source)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextPoll.Before(due[j].NextPoll) })
	return due, nil
}

// RunPass processes every due source sequentially. Each source's full
// fetch+merge cycle runs to completion before the next begins; a failing
// source is logged and rescheduled, never aborting the pass.
func (s *Scheduler) RunPass(ctx context.Context) error {
	now := time.Now()
	due, err := s.DueSources(now)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	Logger.LogV2.Infof("scheduler pass: ", len(due), " feed(s) due")

	for _, source := range due {
		s.pollSource(ctx, source)
	}
	return nil
}

func (s *Scheduler) pollSource(ctx context.Context, source *model.FeedSource) {
	now := time.Now()
	MarkPolling(source, now)
	if err := s.store.SaveFeedSourceScheduling(source); err != nil {
		Logger.LogV2.Errorf("failed to mark polling for ", source.Url, err)
		return
	}

	newIds, modifiedIds, err := s.fetchAndMerge(ctx, source)
	if err != nil {
		s.processor.ReportFailure(source, err)
		source.LastLog = ingest.LastLogLine(0, 0, err)
	} else {
		source.LastLog = ingest.LastLogLine(len(newIds), len(modifiedIds), nil)
	}

	Complete(source, time.Now())
	if err := s.store.SaveFeedSourceScheduling(source); err != nil {
		Logger.LogV2.Errorf("failed to reschedule ", source.Url, err)
	}
}

func (s *Scheduler) fetchAndMerge(ctx context.Context, source *model.FeedSource) ([]string, []string, error) {
	p, ok := s.registry.Get(source.ParserSlug)
	if !ok {
		return nil, nil, fmt.Errorf("no parser registered for slug %q (feed %s)", source.ParserSlug, source.Url)
	}

	items, err := p.Fetch(ctx, source.Url, source)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "fetch failed for feed %s", source.Url)
	}

	return s.processor.Process(ctx, items, source)
}
