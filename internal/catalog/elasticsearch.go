package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"protein-advisor/internal/common/config"
	"protein-advisor/internal/common/database"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// maxSearchHits bounds one catalog read; a product catalog is small.
const maxSearchHits = 10000

// ElasticsearchSource reads product documents whose fields are the sheet
// headers. Documents come back in index order.
type ElasticsearchSource struct {
	es    *database.ElasticsearchClient
	index string
}

func NewElasticsearchSource(es *database.ElasticsearchClient, index string) *ElasticsearchSource {
	return &ElasticsearchSource{es: es, index: index}
}

func (s *ElasticsearchSource) Name() string { return config.CatalogSourceElasticsearch }

func (s *ElasticsearchSource) FetchTable(ctx context.Context) (*Table, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []string{"_doc"},
		"size":  maxSearchHits,
	})
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
	}

	res, err := req.Do(ctx, s.es.Client)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: search %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch: search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("elasticsearch: decode: %w", err)
	}

	table := &Table{Rows: make([]map[string]string, 0, len(r.Hits.Hits))}
	seenCol := make(map[string]bool)
	for _, hit := range r.Hits.Hits {
		row := make(map[string]string, len(hit.Source))
		for field, v := range hit.Source {
			if !seenCol[field] {
				seenCol[field] = true
				table.Columns = append(table.Columns, field)
			}
			row[field] = cellString(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
