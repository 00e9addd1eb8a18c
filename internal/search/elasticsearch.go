// Package search indexes closed orders into Elasticsearch when a table is
// freed, so history remains queryable after the local cache prunes
// delivered orders. Indexing is best-effort: a failure never blocks the
// table-freeing flow.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"example.com/tavolo/possync/config"
	"example.com/tavolo/possync/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// HistoryIndexer records closed orders. The lifecycle manager accepts any
// implementation; nil disables history entirely.
type HistoryIndexer interface {
	IndexClosedOrder(ctx context.Context, tenantID string, order models.Order) error
}

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexClosedOrder indexes one delivered order into the history index.
func (c *ElasticClient) IndexClosedOrder(ctx context.Context, tenantID string, order models.Order) error {
	log.Info().Str("order_id", order.ID).Str("table", order.TableNumber).Msg("indexing closed order")

	var total float64
	lines := make([]map[string]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		total += item.MenuItem.Price * float64(item.Quantity)
		lines = append(lines, map[string]interface{}{
			"name":     item.MenuItem.Name,
			"category": item.MenuItem.Category,
			"price":    item.MenuItem.Price,
			"quantity": item.Quantity,
			"notes":    item.Notes,
		})
	}

	doc := map[string]interface{}{
		"id":           order.ID,
		"tenant_id":    tenantID,
		"table_number": order.TableNumber,
		"waiter_name":  order.WaiterName,
		"created_at":   order.CreatedAt,
		"closed_at":    order.Timestamp,
		"day":          order.CreatedAt.Format("2006-01-02"),
		"total":        total,
		"items":        lines,
		"indexed_at":   time.Now().UTC(),
	}

	docJson, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: order.ID,
		Body:       bytes.NewReader(docJson),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	return nil
}

// SearchHistory queries the history index with a raw Elasticsearch query.
func (c *ElasticClient) SearchHistory(ctx context.Context, query map[string]interface{}) ([]map[string]interface{}, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch response")
	}

	var docs []map[string]interface{}
	if hits, ok := result["hits"].(map[string]interface{}); ok {
		if hitList, ok := hits["hits"].([]interface{}); ok {
			for _, h := range hitList {
				if hit, ok := h.(map[string]interface{}); ok {
					if source, ok := hit["_source"].(map[string]interface{}); ok {
						docs = append(docs, source)
					}
				}
			}
		}
	}

	return docs, nil
}
