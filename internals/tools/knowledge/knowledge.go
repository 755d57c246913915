// Package knowledge is the vector-store collaborator client. The store runs
// as an HTTP sidecar; this client speaks its two endpoints: index a batch of
// chunks, and similarity-search prior material.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"docpipe/internals/schemas"
	"docpipe/internals/timeouts"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(baseURL string, logger *slog.Logger, opts ...Option) *Client {
	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeouts.Knowledge,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type addRequest struct {
	IDs        []string `json:"ids"`
	Texts      []string `json:"texts"`
	TaskID     string   `json:"task_id"`
	DocumentID string   `json:"document_id"`
}

// Add indexes the chunks under deterministic ids derived from the task,
// document, and chunk index. Redelivery of the same task overwrites the
// same ids instead of duplicating vectors.
func (c *Client) Add(ctx context.Context, texts []string, taskID string, documentID string) error {
	if len(texts) == 0 {
		return nil
	}

	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = fmt.Sprintf("%s-%s-%d", taskID, documentID, i)
	}

	payload := addRequest{IDs: ids, Texts: texts, TaskID: taskID, DocumentID: documentID}
	resp, err := c.post(ctx, "/documents", payload)
	if err != nil {
		return fmt.Errorf("knowledge store add failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("knowledge store add failed: status %d", resp.StatusCode)
	}
	return nil
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []schemas.Match `json:"results"`
}

// Search returns the k most similar prior spans. An internal failure yields
// an empty result set, never an error: retrieval augmentation is best
// effort and must not fail the pipeline.
func (c *Client) Search(ctx context.Context, query string, k int) []schemas.Match {
	resp, err := c.post(ctx, "/search", searchRequest{Query: query, TopK: k})
	if err != nil {
		c.logger.Warn("knowledge search failed", slog.String("error", err.Error()))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("knowledge search failed", slog.Int("status", resp.StatusCode))
		return nil
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("knowledge search returned invalid payload", slog.String("error", err.Error()))
		return nil
	}
	return payload.Results
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}
