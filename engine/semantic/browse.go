package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/recallio/recall-mvp/engine/domain"
)

// scrollPage mirrors the REST scroll response shape.
type scrollPage struct {
	Result struct {
		Points []struct {
			ID      any            `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// Browse pages through points matching only the tag filter, via the
// REST scroll API. No similarity is computed: every hit carries the
// sentinel score 0, and ordering is whatever stable order scroll
// returns.
func (s *Store) Browse(ctx context.Context, tags map[string]string, limit int) ([]domain.Hit, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if f := ScrollFilter(tags); f != nil {
		body["filter"] = f
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("semantic: scroll marshal: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/scroll", s.httpBase, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("semantic: scroll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("semantic: scroll: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("semantic: scroll: status %d: %s", resp.StatusCode, msg)
	}

	var page scrollPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("semantic: scroll decode: %w", err)
	}

	hits := make([]domain.Hit, len(page.Result.Points))
	for i, p := range page.Result.Points {
		hits[i] = domain.Hit{
			ID:      fmt.Sprint(p.ID),
			Score:   0,
			Payload: p.Payload,
		}
	}
	return hits, nil
}
