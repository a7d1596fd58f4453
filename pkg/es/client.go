// Package es indexes answered doubts in Elasticsearch for full-text search.
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"doubtiq-go/internal/config"
	"doubtiq-go/internal/model"
	"doubtiq-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const doubtMapping = `{
	"mappings": {
		"properties": {
			"doubt_id": { "type": "long" },
			"user_id": { "type": "long" },
			"question": { "type": "text", "analyzer": "english" },
			"answer": { "type": "text", "analyzer": "english" },
			"created_at": { "type": "date" }
		}
	}
}`

// DoubtIndex stores one document per doubt, keyed by the doubt ID.
type DoubtIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewDoubtIndex connects to Elasticsearch and creates the index when missing.
func NewDoubtIndex(esCfg config.ElasticsearchConfig) (*DoubtIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	idx := &DoubtIndex{client: client, index: esCfg.IndexName}
	if err := idx.createIndexIfNotExists(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (d *DoubtIndex) createIndexIfNotExists() error {
	res, err := d.client.Indices.Exists([]string{d.index})
	if err != nil {
		return fmt.Errorf("check index %s: %w", d.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("index '%s' already exists", d.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d checking index %s", res.StatusCode, d.index)
	}

	res, err = d.client.Indices.Create(d.index, d.client.Indices.Create.WithBody(strings.NewReader(doubtMapping)))
	if err != nil {
		return fmt.Errorf("create index %s: %w", d.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", d.index, res.String())
	}
	log.Infof("index '%s' created", d.index)
	return nil
}

// Index stores doubt. Re-indexing the same doubt overwrites it.
func (d *DoubtIndex) Index(ctx context.Context, doubt *model.Doubt) error {
	doc := model.DoubtDocument{
		DoubtID:   doubt.ID,
		UserID:    doubt.UserID,
		Question:  doubt.Question,
		Answer:    doubt.Answer,
		CreatedAt: doubt.CreatedAt,
	}
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      d.index,
		DocumentID: strconv.FormatUint(uint64(doubt.ID), 10),
		Body:       bytes.NewReader(docBytes),
	}
	res, err := req.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("index doubt %d: %w", doubt.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index doubt %d: %s", doubt.ID, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64             `json:"_score"`
			Source model.DoubtDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a full-text query over userID's doubts only.
func (d *DoubtIndex) Search(ctx context.Context, userID uint, query string, size int) ([]model.DoubtHit, error) {
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"question^2", "answer"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := d.client.Search(
		d.client.Search.WithContext(ctx),
		d.client.Search.WithIndex(d.index),
		d.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search doubts: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.New("search doubts: " + res.String())
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]model.DoubtHit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, model.DoubtHit{
			ID:        h.Source.DoubtID,
			Question:  h.Source.Question,
			Answer:    h.Source.Answer,
			CreatedAt: h.Source.CreatedAt,
			Score:     h.Score,
		})
	}
	return hits, nil
}
