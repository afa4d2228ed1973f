package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/reelworks/newsreel/internal/cascade"
)

// CascadeSet bundles the provider cascades the render worker consumes.
// Construction is explicit: every provider is registered here, in priority
// order, based on which API keys are configured. A capability with zero
// configured providers gets an empty cascade, which reports exhaustion on
// the first call instead of failing at startup.
type CascadeSet struct {
	Narration   *cascade.Cascade[SpeechRequest, SpeechResult]
	SlideSynth  *cascade.Cascade[SlideRequest, []byte]
	ImageSearch *cascade.Cascade[SearchRequest, []string]
	VideoSearch *cascade.Cascade[SearchRequest, []string]
}

// CascadeKeys carries the API keys that decide which providers join each
// cascade. Empty keys are skipped.
type CascadeKeys struct {
	OpenAI       string
	UnrealSpeech string
	Gemini       string
	Serper       string
	Brave        string
	Pexels       string
	Pixabay      string
}

// BuildCascades assembles the full provider set. Priority order is fixed:
//
//	narration:    openai -> unrealspeech
//	slide synth:  gemini -> dall-e
//	image search: serper -> brave -> pixabay
//	video search: pexels
func BuildCascades(keys CascadeKeys, callTimeout time.Duration) *CascadeSet {
	set := &CascadeSet{}

	var narration []cascade.Provider[SpeechRequest, SpeechResult]
	var slides []cascade.Provider[SlideRequest, []byte]
	var images []cascade.Provider[SearchRequest, []string]
	var videos []cascade.Provider[SearchRequest, []string]

	if keys.OpenAI != "" {
		oai := NewOpenAIService(keys.OpenAI)
		narration = append(narration, cascade.Provider[SpeechRequest, SpeechResult]{
			Name: "openai", Call: oai.GenerateSpeech,
		})
		slides = append(slides, cascade.Provider[SlideRequest, []byte]{
			Name: "dall-e", Call: oai.GenerateSlide,
		})
	}
	if keys.UnrealSpeech != "" {
		us := NewUnrealSpeechService(keys.UnrealSpeech)
		narration = append(narration, cascade.Provider[SpeechRequest, SpeechResult]{
			Name: "unrealspeech", Call: us.GenerateSpeech,
		})
	}
	if keys.Gemini != "" {
		gem := NewGeminiService(keys.Gemini)
		// Gemini leads slide synthesis; DALL-E stays as fallback.
		slides = append([]cascade.Provider[SlideRequest, []byte]{
			{Name: "gemini", Call: gem.GenerateSlide},
		}, slides...)
	}
	if keys.Serper != "" {
		images = append(images, cascade.Provider[SearchRequest, []string]{
			Name: "serper", Call: NewSerperService(keys.Serper).SearchImages,
		})
	}
	if keys.Brave != "" {
		images = append(images, cascade.Provider[SearchRequest, []string]{
			Name: "brave", Call: NewBraveService(keys.Brave).SearchImages,
		})
	}
	if keys.Pixabay != "" {
		images = append(images, cascade.Provider[SearchRequest, []string]{
			Name: "pixabay", Call: NewPixabayService(keys.Pixabay).SearchImages,
		})
	}
	if keys.Pexels != "" {
		videos = append(videos, cascade.Provider[SearchRequest, []string]{
			Name: "pexels", Call: NewPexelsService(keys.Pexels).SearchVideos,
		})
	}

	set.Narration = &cascade.Cascade[SpeechRequest, SpeechResult]{
		Capability:  "narration",
		Providers:   narration,
		CallTimeout: callTimeout,
		Validate: func(r SpeechResult) error {
			if len(r.AudioData) == 0 {
				return fmt.Errorf("empty audio payload")
			}
			return nil
		},
	}
	set.SlideSynth = &cascade.Cascade[SlideRequest, []byte]{
		Capability:  "slide-synthesis",
		Providers:   slides,
		CallTimeout: callTimeout,
		Validate: func(data []byte) error {
			if len(data) == 0 {
				return fmt.Errorf("empty image payload")
			}
			return nil
		},
	}
	set.ImageSearch = &cascade.Cascade[SearchRequest, []string]{
		Capability:  "image-search",
		Providers:   images,
		CallTimeout: callTimeout,
		Validate:    validateURLList,
	}
	set.VideoSearch = &cascade.Cascade[SearchRequest, []string]{
		Capability:  "video-search",
		Providers:   videos,
		CallTimeout: callTimeout,
		Validate:    validateURLList,
	}

	return set
}

// validateURLList rejects empty result sets and results with no usable
// http(s) URLs, so the cascade falls through to the next provider instead
// of handing the pipeline a dead list.
func validateURLList(urls []string) error {
	for _, u := range urls {
		if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			return nil
		}
	}
	return fmt.Errorf("no usable urls in result")
}
