package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"
)

const geminiImageModel = "gemini-2.5-flash-image"

// GeminiService synthesizes still slide images with the Gemini image model.
// It sits ahead of DALL-E in the slide-synthesis cascade.
type GeminiService struct {
	apiKey string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{apiKey: apiKey}
}

// GenerateSlide produces a single image for the given prompt and returns the
// raw encoded bytes (PNG or JPEG, whatever the model emits).
func (s *GeminiService) GenerateSlide(ctx context.Context, req SlideRequest) ([]byte, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	aspectRatio := "16:9"
	if req.Portrait {
		aspectRatio = "9:16"
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		ImageConfig: &genai.ImageConfig{
			AspectRatio: aspectRatio,
		},
	}

	log.Printf("[Gemini] Generating slide (aspect %s): %.80s", aspectRatio, req.Prompt)

	resp, err := client.Models.GenerateContent(ctx, geminiImageModel, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}

	return nil, fmt.Errorf("gemini response contained no image data")
}
