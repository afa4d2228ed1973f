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

const pexelsVideosURL = "https://api.pexels.com/videos/search"

// PexelsService searches stock video clips. Sole provider of the
// video-search cascade.
type PexelsService struct {
	apiKey     string
	httpClient *http.Client
}

func NewPexelsService(apiKey string) *PexelsService {
	return &PexelsService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type pexelsVideoFile struct {
	Link   string `json:"link"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type pexelsVideo struct {
	VideoFiles []pexelsVideoFile `json:"video_files"`
}

type pexelsVideosResponse struct {
	Videos []pexelsVideo `json:"videos"`
}

// SearchVideos returns downloadable clip URLs for the query. For each hit it
// picks the largest file that is at least 720px wide, so the compositor has
// enough resolution to crop-fill either output format.
func (s *PexelsService) SearchVideos(ctx context.Context, req SearchRequest) ([]string, error) {
	q := url.Values{}
	q.Set("query", req.Query)
	q.Set("orientation", "portrait")
	if req.Limit > 0 {
		q.Set("per_page", strconv.Itoa(req.Limit))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pexelsVideosURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating pexels request: %w", err)
	}
	httpReq.Header.Set("Authorization", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling pexels: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels returned status %d", resp.StatusCode)
	}

	var parsed pexelsVideosResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding pexels response: %w", err)
	}

	urls := make([]string, 0, len(parsed.Videos))
	for _, video := range parsed.Videos {
		best := ""
		bestWidth := 0
		for _, f := range video.VideoFiles {
			if f.Width >= 720 && f.Width > bestWidth {
				best = f.Link
				bestWidth = f.Width
			}
		}
		if best != "" {
			urls = append(urls, best)
		}
		if req.Limit > 0 && len(urls) >= req.Limit {
			break
		}
	}
	return urls, nil
}
