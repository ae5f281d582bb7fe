package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"visa-checklist/internal/common/logger"
	"visa-checklist/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const maxSearchSize = 50

// ElasticsearchBase searches an index of ingested embassy and policy pages.
// Documents carry countryCode and visaType keyword fields; "*" in visaType
// marks passages that apply to every visa type of a country.
type ElasticsearchBase struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchBase(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchBase {
	return &ElasticsearchBase{
		client: client,
		index:  index,
		logger: logger.Component(log, "knowledge-es"),
	}
}

func buildSearchQuery(countryCode, visaType string) map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"countryCode": countryCode}},
					map[string]interface{}{"terms": map[string]interface{}{"visaType": []string{visaType, "*"}}},
				},
				"should": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  "required documents checklist application " + visaType,
							"fields": []string{"title^2", "content"},
							"type":   "best_fields",
						},
					},
				},
			},
		},
		"_source": []string{"source", "title", "content"},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Source  string `json:"source"`
				Title   string `json:"title"`
				Content string `json:"content"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (b *ElasticsearchBase) Search(ctx context.Context, countryCode, visaType string, limit int) ([]models.KnowledgeSnippet, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxSearchSize {
		limit = maxSearchSize
	}

	body, err := json.Marshal(buildSearchQuery(countryCode, visaType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{b.index},
		Body:  bytes.NewReader(body),
		Size:  &limit,
	}
	res, err := req.Do(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	out := make([]models.KnowledgeSnippet, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		if h.Source.Content == "" {
			continue
		}
		out = append(out, models.KnowledgeSnippet{
			Source:  h.Source.Source,
			Title:   h.Source.Title,
			Content: h.Source.Content,
			Score:   h.Score,
		})
	}

	b.logger.Debug("knowledge base search", map[string]interface{}{
		"countryCode": countryCode,
		"visaType":    visaType,
		"hits":        len(out),
	})
	return out, nil
}
