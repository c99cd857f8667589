package ingest

import (
	"fmt"

	"github.com/friendnet-labs/friendsync/model"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

// RetrievalSink receives the outcome of each feed retrieval. Notification
// and email rendering live behind this boundary and are not part of the
// sync engine.
type RetrievalSink interface {
	RetrievalCompleted(source *model.FeedSource, newIds []string, modifiedIds []string)
	RetrievalFailed(source *model.FeedSource, err error)
}

// LogSink writes retrieval outcomes to the process log. It is the default
// sink wired into every processor.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) RetrievalCompleted(source *model.FeedSource, newIds []string, modifiedIds []string) {
	Logger.LogV2.Info(fmt.Sprintf(
		"retrieval completed for %s: %d new, %d modified", source.Url, len(newIds), len(modifiedIds)))
}

func (s *LogSink) RetrievalFailed(source *model.FeedSource, err error) {
	Logger.LogV2.Error(fmt.Sprintf("retrieval failed for %s: %v", source.Url, err))
}
