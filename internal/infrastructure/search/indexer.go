// Package search publishes posture documents into the Elasticsearch index.
// Uploads run in fixed-size batches matching the service's per-request
// document limit; failures are tallied per item, and a partial batch failure
// never aborts the remaining batches.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/pkg/constants"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// Indexer uploads document batches to the search service.
type Indexer interface {
	// Rebuild republishes docs and returns the count of successfully
	// indexed documents. Zero input documents yield a zero count without
	// any upload call.
	Rebuild(ctx context.Context, docs []map[string]any) (int, error)
}

// ElasticIndexer is the Elasticsearch-backed Indexer.
type ElasticIndexer struct {
	client    *elasticsearch.Client
	index     string
	batchSize int
	logger    logger.Logger
}

// NewElasticIndexer creates the Elasticsearch client and indexer.
func NewElasticIndexer(cfg config.SearchConfig, log logger.Logger) (*ElasticIndexer, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, errors.ErrConfiguration("failed to create search client").WithCause(err)
	}

	index := cfg.Index
	if index == "" {
		index = constants.DefaultIndexName
	}

	return &ElasticIndexer{
		client:    client,
		index:     index,
		batchSize: constants.IndexBatchSize,
		logger:    log.WithComponent("ElasticIndexer"),
	}, nil
}

// Rebuild uploads docs in batches via the Bulk API.
func (x *ElasticIndexer) Rebuild(ctx context.Context, docs []map[string]any) (int, error) {
	if len(docs) == 0 {
		x.logger.Warn(ctx, "no documents to index")
		return 0, nil
	}

	total := 0
	for start := 0; start < len(docs); start += x.batchSize {
		end := start + x.batchSize
		if end > len(docs) {
			end = len(docs)
		}

		indexed, err := x.uploadBatch(ctx, docs[start:end])
		if err != nil {
			// A failed batch does not abort the remaining ones.
			x.logger.Error(ctx, "batch upload failed", err,
				logger.Int("batch_start", start),
				logger.Int("batch_size", end-start),
			)
			continue
		}
		total += indexed
	}

	x.logger.Info(ctx, "index rebuild finished",
		logger.String("index", x.index),
		logger.Int("indexed", total),
		logger.Int("documents", len(docs)),
	)
	return total, nil
}

// uploadBatch sends one NDJSON bulk request and counts per-item successes.
func (x *ElasticIndexer) uploadBatch(ctx context.Context, docs []map[string]any) (int, error) {
	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]any{"index": map[string]any{"_index": x.index}}
		if id, ok := doc["id"]; ok {
			action["index"].(map[string]any)["_id"] = fmt.Sprintf("%v", id)
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return 0, errors.ErrInternal("failed to encode bulk action").WithCause(err)
		}
		if err := json.NewEncoder(&buf).Encode(doc); err != nil {
			return 0, errors.ErrInternal("failed to encode document").WithCause(err)
		}
	}

	res, err := x.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		x.client.Bulk.WithContext(ctx),
		x.client.Bulk.WithIndex(x.index),
	)
	if err != nil {
		return 0, errors.ErrTransient("bulk request failed").WithCause(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, errors.ErrTransient(fmt.Sprintf("bulk request rejected: %s", res.String()))
	}

	var bulkResponse struct {
		Items []map[string]struct {
			Error any `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResponse); err != nil {
		return 0, errors.ErrTransient("failed to parse bulk response").WithCause(err)
	}

	indexed := 0
	for _, item := range bulkResponse.Items {
		for _, result := range item {
			if result.Error == nil {
				indexed++
			}
		}
	}
	return indexed, nil
}

var _ Indexer = (*ElasticIndexer)(nil)
