// Package github publishes the merged schema as a serverless JS handler in
// a GitHub repository, via the contents API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/datespot/aggregator/internal/domain"
)

const defaultBaseURL = "https://api.github.com/repos"

// Publisher writes the schema file through the GitHub contents API. Updates
// need the current blob SHA; a missing file (404) means create.
type Publisher struct {
	token      string
	repo       string
	filePath   string
	httpClient *http.Client
	baseURL    string
	clock      clockwork.Clock
	location   *time.Location
	logger     *slog.Logger
}

// NewPublisher creates a publisher for repo (owner/name) writing filePath.
func NewPublisher(token, repo, filePath string, timeout time.Duration, clock clockwork.Clock, logger *slog.Logger) *Publisher {
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		loc = time.UTC
	}
	return &Publisher{
		token:      token,
		repo:       repo,
		filePath:   filePath,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		clock:      clock,
		location:   loc,
		logger:     logger,
	}
}

// Publish uploads the schema, wrapped in the JS handler template, as a new
// commit. The file is created if absent and overwritten otherwise.
func (p *Publisher) Publish(ctx context.Context, schema *domain.Schema) error {
	sha, err := p.currentFileSHA(ctx)
	if err != nil {
		return fmt.Errorf("resolve current file: %w", err)
	}
	if sha != "" {
		p.logger.Info("updating existing schema file", "sha", sha[:8])
	} else {
		p.logger.Info("schema file absent, creating")
	}

	code, err := handlerCode(schema)
	if err != nil {
		return fmt.Errorf("render handler code: %w", err)
	}

	payload := map[string]string{
		"message": fmt.Sprintf("Update schema from DateSpot Aggregator - %s",
			p.clock.Now().In(p.location).Format(time.RFC3339)),
		"content": base64.StdEncoding.EncodeToString([]byte(code)),
	}
	if sha != "" {
		payload["sha"] = sha
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.contentsURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github API error: status %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Commit.SHA != "" {
		p.logger.Info("published schema to github",
			"repo", p.repo, "path", p.filePath, "commit", result.Commit.SHA)
	}
	return nil
}

// currentFileSHA returns the blob SHA of the schema file, or "" when the
// file does not exist yet.
func (p *Publisher) currentFileSHA(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.contentsURL(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("contents request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var contents struct {
			SHA string `json:"sha"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&contents); err != nil {
			return "", fmt.Errorf("decode contents: %w", err)
		}
		return contents.SHA, nil
	case http.StatusNotFound:
		return "", nil
	default:
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("github API error: status %d: %s", resp.StatusCode, msg)
	}
}

func (p *Publisher) contentsURL() string {
	return fmt.Sprintf("%s/%s/contents/%s", p.baseURL, p.repo, p.filePath)
}

func (p *Publisher) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "DateSpot-Aggregator")
}

// handlerCode embeds the schema in a serverless handler that serves it as
// JSON behind an API key check.
func handlerCode(schema *domain.Schema) (string, error) {
	encoded, err := json.MarshalIndent(schema, "  ", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`export default function handler(req, res) {
  res.setHeader('Access-Control-Allow-Origin', '*');
  res.setHeader('Access-Control-Allow-Methods', 'GET, OPTIONS');
  res.setHeader('Access-Control-Allow-Headers', 'X-API-Key, Content-Type');

  if (req.method === 'OPTIONS') {
    return res.status(200).end();
  }

  if (req.method !== 'GET') {
    return res.status(405).json({ error: 'Method not allowed' });
  }

  const apiKey = req.headers['x-api-key'];
  if (!apiKey || apiKey !== process.env.API_SECRET_KEY) {
    return res.status(401).json({ error: 'Unauthorized' });
  }

  const schema = %s;

  res.setHeader('Cache-Control', 'public, max-age=3600');
  res.setHeader('Content-Type', 'application/json');

  return res.status(200).json(schema);
}
`, string(encoded)), nil
}
