package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const serperImagesURL = "https://google.serper.dev/images"

// SerperService searches Google Images through the serper.dev proxy.
// Primary image-search provider.
type SerperService struct {
	apiKey     string
	httpClient *http.Client
}

func NewSerperService(apiKey string) *SerperService {
	return &SerperService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type serperImageResult struct {
	ImageURL string `json:"imageUrl"`
}

type serperImagesResponse struct {
	Images []serperImageResult `json:"images"`
}

// SearchImages returns direct image URLs for the query, best matches first.
func (s *SerperService) SearchImages(ctx context.Context, req SearchRequest) ([]string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"q":   req.Query,
		"num": req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling serper payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, serperImagesURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating serper request: %w", err)
	}
	httpReq.Header.Set("X-API-KEY", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling serper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var parsed serperImagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serper response: %w", err)
	}

	urls := make([]string, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		if img.ImageURL != "" {
			urls = append(urls, img.ImageURL)
		}
		if req.Limit > 0 && len(urls) >= req.Limit {
			break
		}
	}
	return urls, nil
}
