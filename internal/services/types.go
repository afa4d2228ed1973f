package services

import (
	"encoding/base64"
	"fmt"
)

// ---------------------------------------------------------------------------
// Capability request/result types shared by the provider cascades.
// Each external capability (narration, slide synthesis, asset search,
// transcription) is expressed as "typed request in, typed result out" so the
// engine never knows which concrete vendor answered.
// ---------------------------------------------------------------------------

// SpeechRequest asks a TTS provider for narration audio.
type SpeechRequest struct {
	Text  string
	Voice string // provider-specific voice hint; empty = provider default
}

// SpeechResult is the raw audio a TTS provider produced.
type SpeechResult struct {
	AudioData []byte
	Format    string // "mp3"
}

// SlideRequest asks an image-synthesis provider for a single still frame.
type SlideRequest struct {
	Prompt   string
	Portrait bool
}

// SearchRequest asks a search provider for asset URLs.
type SearchRequest struct {
	Query string
	Limit int
}

// WordTimestamp is a single transcribed word with its precise timing.
// Used by the caption synchronizer to build readable on-screen groups.
type WordTimestamp struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}

func decodeBase64Image(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image payload: %w", err)
	}
	return data, nil
}
