package ingest

import (
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/friendnet-labs/friendsync/model"
	Logger "github.com/friendnet-labs/friendsync/utils/log"
)

// WebhookTimeout bounds each outgoing notification request. A slow endpoint
// must not hold up the poll pass.
const WebhookTimeout = 10 * time.Second

// retrievalNotice is the wire shape posted to the webhook endpoint.
type retrievalNotice struct {
	FeedUrl     string   `json:"feed_url"`
	AccountId   string   `json:"account_id"`
	NewIds      []string `json:"new_ids,omitempty"`
	ModifiedIds []string `json:"modified_ids,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// WebhookSink posts a JSON summary of every retrieval outcome to a
// configured endpoint. Delivery is best effort: a failed post is logged
// and dropped, never retried and never surfaced to the poll pass.
type WebhookSink struct {
	endpoint string
	client   *resty.Client
}

func NewWebhookSink(endpoint string, userAgent string) *WebhookSink {
	client := resty.New().
		SetTimeout(WebhookTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Content-Type", "application/json")
	return &WebhookSink{endpoint: endpoint, client: client}
}

func (s *WebhookSink) RetrievalCompleted(source *model.FeedSource, newIds []string, modifiedIds []string) {
	if len(newIds) == 0 && len(modifiedIds) == 0 {
		return
	}
	s.post(&retrievalNotice{
		FeedUrl:     source.Url,
		AccountId:   source.AccountId,
		NewIds:      newIds,
		ModifiedIds: modifiedIds,
	})
}

func (s *WebhookSink) RetrievalFailed(source *model.FeedSource, err error) {
	s.post(&retrievalNotice{
		FeedUrl:   source.Url,
		AccountId: source.AccountId,
		Error:     err.Error(),
	})
}

func (s *WebhookSink) post(notice *retrievalNotice) {
	res, err := s.client.R().SetBody(notice).Post(s.endpoint)
	if err != nil {
		Logger.LogV2.Errorf("webhook delivery failed for ", notice.FeedUrl, err)
		return
	}
	if res.StatusCode() >= 300 {
		Logger.LogV2.Errorf("webhook endpoint returned ", res.StatusCode(), " for ", notice.FeedUrl)
	}
}
