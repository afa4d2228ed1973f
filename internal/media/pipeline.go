package media

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/reelworks/newsreel/internal/cascade"
	"github.com/reelworks/newsreel/internal/models"
	"github.com/reelworks/newsreel/internal/services"
)

// AssetKind classifies what a timeline asset is made of.
type AssetKind string

const (
	AssetImage AssetKind = "image" // still frame, padded + slow zoom
	AssetVideo AssetKind = "video" // motion clip, crop-filled
	AssetLoop  AssetKind = "loop"  // bundled ambient clip, looped
	AssetColor AssetKind = "color" // solid frame, absolute last resort
)

// Asset is one accepted piece of visual material plus the screen time it
// contributes to coverage.
type Asset struct {
	Kind       AssetKind
	Path       string  // local file; empty for color assets
	Duration   float64 // seconds of coverage
	ClipOffset float64 // subclip start within a video source
}

// fileFetcher and durationProber are the pipeline's seams for tests.
type fileFetcher interface {
	FetchFile(ctx context.Context, url, ext string) (string, error)
	FetchVideo(ctx context.Context, url string) (string, error)
}

type durationProber interface {
	MediaDuration(ctx context.Context, path string) (float64, error)
}

// minClipSeconds is the shortest usable motion clip. Anything shorter than
// the crossfade window would produce an invalid transition chain downstream.
const minClipSeconds = 1.0

// PipelineConfig tunes acceptance and coverage accounting.
type PipelineConfig struct {
	ImageNominalSeconds  float64  // screen time per still, typically 4.0
	MaxDeclaredImages    int      // cap on images taken from the job payload
	MaxHighlightURLs     int      // highlight download attempts before giving up
	HighlightClipSeconds float64  // max screen time for the highlight clip
	StockClipSeconds     float64  // max screen time per stock video
	SearchResultLimit    int      // urls requested per search term
	MaxSlides            int      // synthesized slides allowed per job
	GenericTerms         []string // broad category queries tried after the specific ones
}

// DefaultPipelineConfig matches production tuning.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ImageNominalSeconds:  4.0,
		MaxDeclaredImages:    12,
		MaxHighlightURLs:     3,
		HighlightClipSeconds: 5.0,
		StockClipSeconds:     8.0,
		SearchResultLimit:    5,
		MaxSlides:            2,
		GenericTerms:         []string{"breaking news broadcast studio", "city skyline aerial footage"},
	}
}

// Pipeline collects enough accepted visual material to cover the narration.
// It works in escalating stages (declared assets, highlight clip, search,
// slide synthesis, static fallback) and is guaranteed to return assets whose
// total duration meets the target; it only errors when the context dies.
type Pipeline struct {
	fetcher     fileFetcher
	prober      durationProber
	store       *Store
	imageSearch *cascade.Cascade[services.SearchRequest, []string]
	videoSearch *cascade.Cascade[services.SearchRequest, []string]
	slideSynth  *cascade.Cascade[services.SlideRequest, []byte]
	cfg         PipelineConfig

	// seam for tests; defaults to HasStockWatermark
	watermarked func(path string) bool
}

func NewPipeline(fetcher *Downloader, prober *services.FFmpegService, store *Store, cascades *services.CascadeSet, cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		prober:      prober,
		store:       store,
		imageSearch: cascades.ImageSearch,
		videoSearch: cascades.VideoSearch,
		slideSynth:  cascades.SlideSynth,
		cfg:         cfg,
		watermarked: HasStockWatermark,
	}
}

// AcquireRequest describes what material a job brings and how much screen
// time must be covered.
type AcquireRequest struct {
	Bundle        models.AssetBundle
	SearchTerms   []string
	Title         string
	Portrait      bool
	TargetSeconds float64
}

// Acquire runs the escalation ladder and returns assets covering at least
// req.TargetSeconds.
func (p *Pipeline) Acquire(ctx context.Context, req AcquireRequest) ([]Asset, error) {
	var assets []Asset
	coverage := 0.0

	add := func(a Asset) {
		assets = append(assets, a)
		coverage += a.Duration
	}

	// Stage 1: images declared on the job.
	declared := req.Bundle.AllImages
	if len(declared) > p.cfg.MaxDeclaredImages {
		declared = declared[:p.cfg.MaxDeclaredImages]
	}
	for _, url := range declared {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if asset, ok := p.acceptImageURL(ctx, url); ok {
			add(asset)
		}
	}

	// Stage 2: at most one highlight clip from at most three candidate URLs,
	// longest sources subclipped from the middle where the action usually is.
	highlightURLs := req.Bundle.AllVideos
	if len(highlightURLs) > p.cfg.MaxHighlightURLs {
		highlightURLs = highlightURLs[:p.cfg.MaxHighlightURLs]
	}
	for _, url := range highlightURLs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		asset, ok := p.acceptHighlightURL(ctx, url)
		if ok {
			add(asset)
			break
		}
	}

	log.Printf("[Assets] Declared material covers %.1fs of %.1fs target", coverage, req.TargetSeconds)

	// Stage 3: search escalation, content-specific terms first, then the
	// broad generic category terms.
	if coverage < req.TargetSeconds {
		specific := req.SearchTerms
		if len(specific) == 0 && req.Title != "" {
			specific = []string{req.Title}
		}
		terms := make([]string, 0, len(specific)+len(p.cfg.GenericTerms))
		terms = append(terms, specific...)
		terms = append(terms, p.cfg.GenericTerms...)
		coverage = p.searchImages(ctx, terms, &assets, coverage, req.TargetSeconds)
		if coverage < req.TargetSeconds {
			coverage = p.searchVideos(ctx, terms, &assets, coverage, req.TargetSeconds)
		}
	}

	// Stage 4: synthesized slides.
	if coverage < req.TargetSeconds && len(p.slideSynth.Providers) > 0 {
		for i := 0; i < p.cfg.MaxSlides && coverage < req.TargetSeconds; i++ {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			asset, ok := p.synthesizeSlide(ctx, req.Title, req.Portrait)
			if !ok {
				break
			}
			add(asset)
		}
	}

	// Stage 5: static fallback fills whatever remains. This stage cannot
	// fail, so the pipeline always reaches the target.
	if coverage < req.TargetSeconds {
		remaining := req.TargetSeconds - coverage
		if loop := p.store.FallbackLoop(); loop != "" {
			log.Printf("[Assets] Filling final %.1fs with ambient loop", remaining)
			add(Asset{Kind: AssetLoop, Path: loop, Duration: remaining})
		} else {
			log.Printf("[Assets] Filling final %.1fs with solid frame", remaining)
			add(Asset{Kind: AssetColor, Duration: remaining})
		}
	}

	return assets, nil
}

func (p *Pipeline) acceptImageURL(ctx context.Context, url string) (Asset, bool) {
	if IsPlaceholderURL(url) {
		log.Printf("[Assets] Skipping placeholder image: %s", url)
		return Asset{}, false
	}

	path, err := p.fetcher.FetchFile(ctx, url, ".jpg")
	if err != nil {
		log.Printf("[Assets] Image download failed: %v", err)
		return Asset{}, false
	}

	if p.watermarked(path) {
		log.Printf("[Assets] Rejecting watermarked image: %s", url)
		os.Remove(path)
		return Asset{}, false
	}

	return Asset{Kind: AssetImage, Path: path, Duration: p.cfg.ImageNominalSeconds}, true
}

func (p *Pipeline) acceptHighlightURL(ctx context.Context, url string) (Asset, bool) {
	path, err := p.fetcher.FetchVideo(ctx, url)
	if err != nil {
		log.Printf("[Assets] Highlight download failed: %v", err)
		return Asset{}, false
	}

	duration, err := p.prober.MediaDuration(ctx, path)
	if err != nil || duration < minClipSeconds {
		log.Printf("[Assets] Highlight unusable (duration %.2fs): %v", duration, err)
		os.Remove(path)
		return Asset{}, false
	}

	asset := Asset{Kind: AssetVideo, Path: path, Duration: duration}
	if duration > p.cfg.HighlightClipSeconds {
		asset.Duration = p.cfg.HighlightClipSeconds
		asset.ClipOffset = (duration - p.cfg.HighlightClipSeconds) / 2
	}
	return asset, true
}

func (p *Pipeline) searchImages(ctx context.Context, terms []string, assets *[]Asset, coverage, target float64) float64 {
	for _, term := range terms {
		if coverage >= target || ctx.Err() != nil {
			break
		}

		result, err := p.imageSearch.Run(ctx, services.SearchRequest{Query: term, Limit: p.cfg.SearchResultLimit})
		if err != nil {
			log.Printf("[Assets] Image search for %q: %v", term, err)
			continue
		}

		for _, url := range result.Value {
			if coverage >= target || ctx.Err() != nil {
				break
			}
			if asset, ok := p.acceptImageURL(ctx, url); ok {
				*assets = append(*assets, asset)
				coverage += asset.Duration
			}
		}
	}
	return coverage
}

func (p *Pipeline) searchVideos(ctx context.Context, terms []string, assets *[]Asset, coverage, target float64) float64 {
	for _, term := range terms {
		if coverage >= target || ctx.Err() != nil {
			break
		}

		result, err := p.videoSearch.Run(ctx, services.SearchRequest{Query: term, Limit: p.cfg.SearchResultLimit})
		if err != nil {
			log.Printf("[Assets] Video search for %q: %v", term, err)
			continue
		}

		for _, url := range result.Value {
			if coverage >= target || ctx.Err() != nil {
				break
			}

			path, err := p.fetcher.FetchFile(ctx, url, ".mp4")
			if err != nil {
				log.Printf("[Assets] Stock video download failed: %v", err)
				continue
			}
			duration, err := p.prober.MediaDuration(ctx, path)
			if err != nil || duration < minClipSeconds {
				os.Remove(path)
				continue
			}
			if duration > p.cfg.StockClipSeconds {
				duration = p.cfg.StockClipSeconds
			}

			*assets = append(*assets, Asset{Kind: AssetVideo, Path: path, Duration: duration})
			coverage += duration
		}
	}
	return coverage
}

func (p *Pipeline) synthesizeSlide(ctx context.Context, title string, portrait bool) (Asset, bool) {
	prompt := fmt.Sprintf("Editorial illustration for a short news video about: %s. Cinematic lighting, no text, no captions, no watermarks.", title)

	result, err := p.slideSynth.Run(ctx, services.SlideRequest{Prompt: prompt, Portrait: portrait})
	if err != nil {
		log.Printf("[Assets] Slide synthesis: %v", err)
		return Asset{}, false
	}

	path := p.store.TempFile(fmt.Sprintf("slide_%s.png", uuid.New().String()[:8]))
	if err := os.WriteFile(path, result.Value, 0644); err != nil {
		log.Printf("[Assets] Writing synthesized slide: %v", err)
		return Asset{}, false
	}

	return Asset{Kind: AssetImage, Path: path, Duration: p.cfg.ImageNominalSeconds}, true
}
