package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClassifier calls a text-classification inference endpoint. Inputs are
// sent in fixed-size batches; the positive label name is explicit
// configuration rather than something inferred from the model's output.
type HTTPClassifier struct {
	baseURL       string
	positiveLabel string
	batchSize     int
	client        *http.Client
}

func NewHTTPClassifier(baseURL, positiveLabel string, batchSize int) (*HTTPClassifier, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("classifier base url is required")
	}
	if strings.TrimSpace(positiveLabel) == "" {
		return nil, fmt.Errorf("classifier positive label is required")
	}
	if batchSize <= 0 {
		batchSize = 16
	}
	return &HTTPClassifier{
		baseURL:       baseURL,
		positiveLabel: positiveLabel,
		batchSize:     batchSize,
		client:        &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, sentences []string) ([]Prediction, error) {
	out := make([]Prediction, 0, len(sentences))
	for start := 0; start < len(sentences); start += c.batchSize {
		end := start + c.batchSize
		if end > len(sentences) {
			end = len(sentences)
		}
		preds, err := c.classifyBatch(ctx, sentences[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, preds...)
	}
	return out, nil
}

func (c *HTTPClassifier) classifyBatch(ctx context.Context, batch []string) ([]Prediction, error) {
	payload, _ := json.Marshal(map[string]any{"inputs": batch})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("classifier error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Results []struct {
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(parsed.Results) != len(batch) {
		return nil, fmt.Errorf("classifier returned %d results for %d inputs", len(parsed.Results), len(batch))
	}
	out := make([]Prediction, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		out = append(out, Prediction{Label: r.Label == c.positiveLabel, Score: r.Score})
	}
	return out, nil
}
