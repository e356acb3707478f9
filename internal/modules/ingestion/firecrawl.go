package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vibecodingwiki/core/internal/config"
)

const (
	firecrawlDefaultBaseURL = "https://api.firecrawl.dev"
	scrapeTimeout           = 60 * time.Second
)

var ErrScrapeNotConfigured = errors.New("scraping service is not configured")

// ScrapeResult is the distilled output of one page scrape.
type ScrapeResult struct {
	Markdown    string
	Title       string
	Description string
	Images      []string
}

// FirecrawlClient scrapes source URLs into markdown.
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewFirecrawlClient(cfg config.FirecrawlConfig) *FirecrawlClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = firecrawlDefaultBaseURL
	}
	return &FirecrawlClient{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: scrapeTimeout},
	}
}

func (c *FirecrawlClient) Enabled() bool { return c.apiKey != "" }

// Scrape fetches a URL as markdown plus page metadata.
func (c *FirecrawlClient) Scrape(ctx context.Context, url string) (*ScrapeResult, error) {
	if !c.Enabled() {
		return nil, ErrScrapeNotConfigured
	}

	body, _ := json.Marshal(map[string]interface{}{
		"url":     url,
		"formats": []string{"markdown"},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("scrape failed: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Markdown string `json:"markdown"`
			Metadata struct {
				Title       string   `json:"title"`
				Description string   `json:"description"`
				OGImage     string   `json:"ogImage"`
				Images      []string `json:"images"`
			} `json:"metadata"`
		} `json:"data"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "unknown scrape error"
		}
		return nil, fmt.Errorf("scrape failed: %s", msg)
	}
	if strings.TrimSpace(result.Data.Markdown) == "" {
		return nil, errors.New("scrape returned no content")
	}

	out := &ScrapeResult{
		Markdown:    result.Data.Markdown,
		Title:       result.Data.Metadata.Title,
		Description: result.Data.Metadata.Description,
		Images:      result.Data.Metadata.Images,
	}
	if result.Data.Metadata.OGImage != "" {
		out.Images = append([]string{result.Data.Metadata.OGImage}, out.Images...)
	}
	return out, nil
}
