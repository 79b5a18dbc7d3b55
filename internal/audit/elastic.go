package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"
)

// DefaultElasticTimeout bounds one index call.
const DefaultElasticTimeout = 2 * time.Second

// ElasticSink indexes each event as its own document. Each index call runs
// under its own timeout and ignores cancellation of the caller's context.
type ElasticSink struct {
	client  *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewElasticSink(addr, user, password, index string) (*ElasticSink, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}
	return &ElasticSink{client: client, index: index, timeout: DefaultElasticTimeout}, nil
}

// WithTimeout sets the per-call index timeout. Non-positive values keep the
// current one.
func (s *ElasticSink) WithTimeout(d time.Duration) *ElasticSink {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Ping checks the cluster answers with a non-error status.
func (s *ElasticSink) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch: info: %s", res.Status())
	}
	return nil
}

func (s *ElasticSink) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("elasticsearch: json.Marshal failed: %w", err)
	}

	req := esapi.IndexRequest{
		Index: s.index,
		Body:  bytes.NewReader(body),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("elasticsearch: index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("elasticsearch: index %s: %s", res.Status(), msg)
	}
	return nil
}

func (s *ElasticSink) Close() error { return nil }
