package grounding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DuckDuckGo grounds a topic with snippets from the instant answer API. No
// key required; an empty result means no usable context was found.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		baseURL: "https://api.duckduckgo.com",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *DuckDuckGo) Ground(ctx context.Context, topic string) (string, error) {
	endpoint := d.baseURL + "/?format=json&no_html=1&q=" + url.QueryEscape(topic)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed (status %d)", resp.StatusCode)
	}

	var apiResp struct {
		AbstractText  string `json:"AbstractText"`
		RelatedTopics []struct {
			Text string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	var snippets []string
	if apiResp.AbstractText != "" {
		snippets = append(snippets, apiResp.AbstractText)
	}
	for _, t := range apiResp.RelatedTopics {
		if t.Text == "" {
			continue
		}
		snippets = append(snippets, t.Text)
		if len(snippets) >= 5 {
			break
		}
	}

	return strings.Join(snippets, "\n"), nil
}
