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

const pixabayAPIURL = "https://pixabay.com/api/"

// PixabayService searches royalty-free stock photos. Last tier of the
// image-search cascade: always safe to embed, rarely topical.
type PixabayService struct {
	apiKey     string
	httpClient *http.Client
}

func NewPixabayService(apiKey string) *PixabayService {
	return &PixabayService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type pixabayHit struct {
	LargeImageURL string `json:"largeImageURL"`
	WebformatURL  string `json:"webformatURL"`
}

type pixabayResponse struct {
	Hits []pixabayHit `json:"hits"`
}

// SearchImages returns stock photo URLs for the query.
func (s *PixabayService) SearchImages(ctx context.Context, req SearchRequest) ([]string, error) {
	q := url.Values{}
	q.Set("key", s.apiKey)
	q.Set("q", req.Query)
	q.Set("image_type", "photo")
	q.Set("safesearch", "true")
	if req.Limit > 0 {
		// Pixabay rejects per_page below 3.
		perPage := req.Limit
		if perPage < 3 {
			perPage = 3
		}
		q.Set("per_page", strconv.Itoa(perPage))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pixabayAPIURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating pixabay request: %w", err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling pixabay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pixabay returned status %d", resp.StatusCode)
	}

	var parsed pixabayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding pixabay response: %w", err)
	}

	urls := make([]string, 0, len(parsed.Hits))
	for _, hit := range parsed.Hits {
		u := hit.LargeImageURL
		if u == "" {
			u = hit.WebformatURL
		}
		if u != "" {
			urls = append(urls, u)
		}
		if req.Limit > 0 && len(urls) >= req.Limit {
			break
		}
	}
	return urls, nil
}
