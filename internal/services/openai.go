package services

import (
	"context"
	"fmt"
	"io"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIService wraps the OpenAI APIs the engine uses: TTS narration,
// Whisper word-level transcription and DALL-E slide synthesis.
type OpenAIService struct {
	client *openai.Client
}

func NewOpenAIService(apiKey string) *OpenAIService {
	return &OpenAIService{client: openai.NewClient(apiKey)}
}

// GenerateSpeech renders narration audio with the tts-1 model.
func (s *OpenAIService) GenerateSpeech(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	voice := openai.VoiceAlloy
	if req.Voice != "" {
		voice = openai.SpeechVoice(req.Voice)
	}

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return SpeechResult{}, fmt.Errorf("openai speech request: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("reading openai speech stream: %w", err)
	}

	return SpeechResult{AudioData: data, Format: "mp3"}, nil
}

// TranscribeAudio runs Whisper over the narration file and returns
// word-level timestamps. Callers treat failures as non-fatal: a video
// without captions still ships.
func (s *OpenAIService) TranscribeAudio(ctx context.Context, audioPath string) ([]WordTimestamp, error) {
	log.Printf("[OpenAI] Transcribing audio for word timestamps: %s", audioPath)

	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{
			openai.TranscriptionTimestampGranularityWord,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription: %w", err)
	}

	words := make([]WordTimestamp, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, WordTimestamp{Word: w.Word, Start: w.Start, End: w.End})
	}

	log.Printf("[OpenAI] Transcription returned %d words", len(words))
	return words, nil
}

// GenerateSlide synthesizes a single still image with DALL-E 3 and returns
// the decoded PNG bytes.
func (s *OpenAIService) GenerateSlide(ctx context.Context, req SlideRequest) ([]byte, error) {
	size := openai.CreateImageSize1792x1024
	if req.Portrait {
		size = openai.CreateImageSize1024x1792
	}

	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Model:          openai.CreateImageModelDallE3,
		Prompt:         req.Prompt,
		N:              1,
		Size:           size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("dall-e image request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("dall-e returned no images")
	}

	return decodeBase64Image(resp.Data[0].B64JSON)
}
