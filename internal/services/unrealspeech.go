package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const unrealSpeechStreamURL = "https://api.v7.unrealspeech.com/stream"

// UnrealSpeechService is the fallback TTS vendor. The /stream endpoint
// responds with raw mp3 bytes instead of a JSON envelope.
type UnrealSpeechService struct {
	apiKey     string
	httpClient *http.Client
}

func NewUnrealSpeechService(apiKey string) *UnrealSpeechService {
	return &UnrealSpeechService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// GenerateSpeech renders narration audio via the UnrealSpeech streaming API.
func (s *UnrealSpeechService) GenerateSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	voice := req.Voice
	if voice == "" {
		voice = "Will"
	}

	payload, err := json.Marshal(map[string]interface{}{
		"Text":    req.Text,
		"VoiceId": voice,
		"Bitrate": "192k",
		"Speed":   0,
		"Pitch":   1.0,
	})
	if err != nil {
		return SpeechResult{}, fmt.Errorf("marshaling unrealspeech payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, unrealSpeechStreamURL, bytes.NewReader(payload))
	if err != nil {
		return SpeechResult{}, fmt.Errorf("creating unrealspeech request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("calling unrealspeech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SpeechResult{}, fmt.Errorf("unrealspeech returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("reading unrealspeech audio stream: %w", err)
	}
	if len(data) == 0 {
		return SpeechResult{}, fmt.Errorf("unrealspeech returned empty audio")
	}

	return SpeechResult{AudioData: data, Format: "mp3"}, nil
}
