package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/dmitrymomot/notifycore/pkg/audit"
)

// maxResultWindow is the default index.max_result_window. A Criteria without
// a limit returns at most this many hits.
const maxResultWindow = 10000

const indexMapping = `{
	"mappings": {
		"properties": {
			"id":         {"type": "keyword"},
			"user_id":    {"type": "long"},
			"type":       {"type": "keyword"},
			"severity":   {"type": "integer"},
			"message":    {"type": "text"},
			"metadata":   {"type": "object", "enabled": false},
			"created_at": {"type": "date"}
		}
	}
}`

// AuditStore implements audit.Storage on one OpenSearch index.
type AuditStore struct {
	client  *opensearchgo.Client
	index   string
	refresh bool
}

// AuditOption configures an AuditStore.
type AuditOption func(*AuditStore)

// WithRefresh makes every write refresh the index before returning.
func WithRefresh(refresh bool) AuditOption {
	return func(s *AuditStore) { s.refresh = refresh }
}

func NewAuditStore(client *opensearchgo.Client, index string, opts ...AuditOption) *AuditStore {
	s := &AuditStore{client: client, index: index}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndex creates the index with its mapping. An existing index is left
// untouched.
func (s *AuditStore) EnsureIndex(ctx context.Context) error {
	res, err := opensearchapi.IndicesCreateRequest{
		Index: s.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrRequestFailed, res.Status(), body)
}

// Store writes events with create actions so documents that already exist
// are skipped instead of overwritten.
func (s *AuditStore) Store(ctx context.Context, events ...audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
		action := map[string]any{"create": map[string]any{"_index": s.index, "_id": e.ID}}
		if err := enc.Encode(action); err != nil {
			return err
		}
		if err := enc.Encode(e); err != nil {
			return err
		}
	}

	req := opensearchapi.BulkRequest{Index: s.index, Body: &buf}
	if s.refresh {
		req.Refresh = "true"
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError(res)
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string          `json:"_id"`
			Status int             `json:"status"`
			Error  json.RawMessage `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode bulk response: %w", ErrRequestFailed, err)
	}
	if !out.Errors {
		return nil
	}
	for _, item := range out.Items {
		for _, r := range item {
			if r.Status >= 300 && r.Status != http.StatusConflict {
				return fmt.Errorf("%w: event %s: status %d: %s", ErrRequestFailed, r.ID, r.Status, r.Error)
			}
		}
	}
	return nil
}

func (s *AuditStore) Query(ctx context.Context, c audit.Criteria) ([]audit.Event, error) {
	size := c.Limit
	if size <= 0 {
		size = maxResultWindow
	}
	body, err := json.Marshal(map[string]any{
		"query": criteriaQuery(c),
		"sort": []any{
			map[string]any{"created_at": map[string]string{"order": "desc"}},
			map[string]any{"id": map[string]string{"order": "asc"}},
		},
		"from": max(c.Offset, 0),
		"size": size,
	})
	if err != nil {
		return nil, err
	}

	res, err := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Source audit.Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", ErrRequestFailed, err)
	}
	events := make([]audit.Event, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		events = append(events, h.Source)
	}
	return events, nil
}

func (s *AuditStore) Count(ctx context.Context, c audit.Criteria) (int64, error) {
	body, err := json.Marshal(map[string]any{"query": criteriaQuery(c)})
	if err != nil {
		return 0, err
	}
	res, err := opensearchapi.CountRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.client)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, responseError(res)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode count response: %w", ErrRequestFailed, err)
	}
	return out.Count, nil
}

func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"range": map[string]any{"created_at": map[string]any{"lt": cutoff.UTC().Format(time.RFC3339Nano)}},
		},
	})
	if err != nil {
		return 0, err
	}
	refresh := s.refresh
	res, err := opensearchapi.DeleteByQueryRequest{
		Index:   []string{s.index},
		Body:    bytes.NewReader(body),
		Refresh: &refresh,
	}.Do(ctx, s.client)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, responseError(res)
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("%w: decode delete response: %w", ErrRequestFailed, err)
	}
	return out.Deleted, nil
}

// Ping checks the cluster for health reports.
func (s *AuditStore) Ping(ctx context.Context) error {
	return Healthcheck(s.client)(ctx)
}

func criteriaQuery(c audit.Criteria) map[string]any {
	filter := []any{
		map[string]any{"range": map[string]any{"severity": map[string]any{"gte": int(c.MinSeverity)}}},
	}
	if c.UserID != 0 {
		filter = append(filter, map[string]any{"term": map[string]any{"user_id": c.UserID}})
	}
	if len(c.Types) > 0 {
		filter = append(filter, map[string]any{"terms": map[string]any{"type": c.Types}})
	}
	if !c.From.IsZero() || !c.To.IsZero() {
		r := map[string]any{}
		if !c.From.IsZero() {
			r["gte"] = c.From.UTC().Format(time.RFC3339Nano)
		}
		if !c.To.IsZero() {
			r["lt"] = c.To.UTC().Format(time.RFC3339Nano)
		}
		filter = append(filter, map[string]any{"range": map[string]any{"created_at": r}})
	}
	return map[string]any{"bool": map[string]any{"filter": filter}}
}

func responseError(res *opensearchapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%w: %s: %s", ErrRequestFailed, res.Status(), bytes.TrimSpace(body))
}
