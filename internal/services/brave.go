package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveImagesURL = "https://api.search.brave.com/res/v1/images/search"

// BraveService searches the Brave image index. Second tier of the
// image-search cascade.
type BraveService struct {
	apiKey     string
	httpClient *http.Client
}

func NewBraveService(apiKey string) *BraveService {
	return &BraveService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type braveImageResult struct {
	Properties struct {
		URL string `json:"url"`
	} `json:"properties"`
}

type braveImagesResponse struct {
	Results []braveImageResult `json:"results"`
}

// SearchImages returns direct image URLs for the query.
func (s *BraveService) SearchImages(ctx context.Context, req SearchRequest) ([]string, error) {
	q := url.Values{}
	q.Set("q", req.Query)
	if req.Limit > 0 {
		q.Set("count", strconv.Itoa(req.Limit))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, braveImagesURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating brave request: %w", err)
	}
	httpReq.Header.Set("X-Subscription-Token", s.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling brave search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave search returned status %d", resp.StatusCode)
	}

	var parsed braveImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding brave response: %w", err)
	}

	urls := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Properties.URL != "" {
			urls = append(urls, r.Properties.URL)
		}
		if req.Limit > 0 && len(urls) >= req.Limit {
			break
		}
	}
	return urls, nil
}
