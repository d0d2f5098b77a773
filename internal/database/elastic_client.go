package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/olivere/elastic/v7"
)

// EmployeeDoc is the searchable projection of an active employee.
type EmployeeDoc struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Telephone    string   `json:"telephone"`
	OfficeName   string   `json:"office_name"`
	ImageURL     string   `json:"image_url"`
	Competencies []string `json:"competencies"`
}

// ElasticSearchClient wraps olivere/elastic client.
type ElasticSearchClient struct {
	client *elastic.Client
	index  string
}

// NewElasticSearchClient creates a new client for Elasticsearch 7.x.
func NewElasticSearchClient(url, index string, opts ...elastic.ClientOptionFunc) (*ElasticSearchClient, error) {
	options := append([]elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false), // Essential when using Docker or cloud
		elastic.SetHealthcheck(false),
	}, opts...)

	client, err := elastic.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &ElasticSearchClient{client: client, index: index}, nil
}

// SearchEmployeesByName performs a full-text match on name, email and competencies.
func (es *ElasticSearchClient) SearchEmployeesByName(ctx context.Context, q string, size int) ([]EmployeeDoc, error) {
	query := elastic.NewMultiMatchQuery(q, "name^3", "email", "competencies").
		Type("best_fields").
		Fuzziness("AUTO")

	searchResult, err := es.client.Search().
		Index(es.index).
		Query(query).
		Size(size).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	employees := make([]EmployeeDoc, 0, len(searchResult.Hits.Hits))
	for _, item := range searchResult.Hits.Hits {
		var emp EmployeeDoc
		if err := json.Unmarshal(item.Source, &emp); err != nil {
			return nil, fmt.Errorf("failed to decode hit %s: %w", item.Id, err)
		}
		employees = append(employees, emp)
	}

	return employees, nil
}

// ReplaceAll indexes docs and deletes every document not in docs, so the
// index mirrors the current set of active employees.
func (es *ElasticSearchClient) ReplaceAll(ctx context.Context, docs []EmployeeDoc) error {
	if err := es.BulkIndexEmployees(ctx, docs); err != nil {
		return err
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	query := elastic.NewBoolQuery().MustNot(elastic.NewIdsQuery().Ids(ids...))
	if _, err := es.client.DeleteByQuery(es.index).Query(query).Refresh("true").Do(ctx); err != nil {
		return fmt.Errorf("failed to prune index: %w", err)
	}
	return nil
}

// BulkIndexEmployees efficiently indexes multiple employees.
func (es *ElasticSearchClient) BulkIndexEmployees(ctx context.Context, employees []EmployeeDoc) error {
	bulkRequest := es.client.Bulk()

	for _, emp := range employees {
		req := elastic.NewBulkIndexRequest().
			Index(es.index).
			Id(emp.ID).
			Doc(emp)
		bulkRequest = bulkRequest.Add(req)
	}

	if bulkRequest.NumberOfActions() == 0 {
		return nil
	}

	bulkResponse, err := bulkRequest.Refresh("true").Do(ctx)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}

	if bulkResponse.Errors {
		for _, item := range bulkResponse.Failed() {
			if item.Error != nil {
				return fmt.Errorf("bulk item %s failed: %s", item.Id, item.Error.Reason)
			}
		}
	}

	return nil
}
