package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reelworks/newsreel/internal/cascade"
	"github.com/reelworks/newsreel/internal/models"
	"github.com/reelworks/newsreel/internal/services"
)

type fakeFetcher struct {
	failFiles     map[string]bool
	failVideos    map[string]bool
	fetchedFiles  []string
	fetchedVideos []string
}

func (f *fakeFetcher) FetchFile(ctx context.Context, url, ext string) (string, error) {
	f.fetchedFiles = append(f.fetchedFiles, url)
	if f.failFiles[url] {
		return "", fmt.Errorf("download failed: %s", url)
	}
	return "local:" + url, nil
}

func (f *fakeFetcher) FetchVideo(ctx context.Context, url string) (string, error) {
	f.fetchedVideos = append(f.fetchedVideos, url)
	if f.failVideos[url] {
		return "", fmt.Errorf("download failed: %s", url)
	}
	return "localvid:" + url, nil
}

type fakeProber struct {
	durations map[string]float64
}

func (f *fakeProber) MediaDuration(ctx context.Context, path string) (float64, error) {
	d, ok := f.durations[path]
	if !ok {
		return 0, fmt.Errorf("no duration for %s", path)
	}
	return d, nil
}

func emptyCascades() (*cascade.Cascade[services.SearchRequest, []string], *cascade.Cascade[services.SearchRequest, []string], *cascade.Cascade[services.SlideRequest, []byte]) {
	return &cascade.Cascade[services.SearchRequest, []string]{Capability: "image-search"},
		&cascade.Cascade[services.SearchRequest, []string]{Capability: "video-search"},
		&cascade.Cascade[services.SlideRequest, []byte]{Capability: "slide-synthesis"}
}

func testPipeline(t *testing.T, fetcher *fakeFetcher, prober *fakeProber) *Pipeline {
	t.Helper()
	store, err := NewStore(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	img, vid, slide := emptyCascades()
	return &Pipeline{
		fetcher:     fetcher,
		prober:      prober,
		store:       store,
		imageSearch: img,
		videoSearch: vid,
		slideSynth:  slide,
		cfg:         DefaultPipelineConfig(),
		watermarked: func(string) bool { return false },
	}
}

func TestDeclaredImagesCoverTarget(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := testPipeline(t, fetcher, &fakeProber{})

	assets, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle:        models.AssetBundle{AllImages: []string{"http://a/1.jpg", "http://a/2.jpg", "http://a/3.jpg"}},
		TargetSeconds: 10,
	})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	for _, a := range assets {
		if a.Kind != AssetImage || a.Duration != 4.0 {
			t.Errorf("unexpected asset: %+v", a)
		}
	}
}

func TestPlaceholderAndWatermarkedImagesRejected(t *testing.T) {
	fetcher := &fakeFetcher{}
	p := testPipeline(t, fetcher, &fakeProber{})
	p.watermarked = func(path string) bool {
		return strings.Contains(path, "stocky")
	}

	assets, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle: models.AssetBundle{AllImages: []string{
			"http://cdn/placeholder.jpg", // skipped before download
			"http://cdn/stocky.jpg",      // downloads, then rejected
			"http://cdn/real.jpg",
		}},
		TargetSeconds: 4,
	})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var images []Asset
	for _, a := range assets {
		if a.Kind == AssetImage {
			images = append(images, a)
		}
	}
	if len(images) != 1 || images[0].Path != "local:http://cdn/real.jpg" {
		t.Fatalf("expected only the clean image accepted, got %+v", images)
	}
	for _, url := range fetcher.fetchedFiles {
		if strings.Contains(url, "placeholder") {
			t.Error("placeholder URL should be skipped without downloading")
		}
	}
}

func TestDeclaredImageCap(t *testing.T) {
	urls := make([]string, 14)
	for i := range urls {
		urls[i] = fmt.Sprintf("http://a/%d.jpg", i)
	}
	fetcher := &fakeFetcher{}
	p := testPipeline(t, fetcher, &fakeProber{})

	if _, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle:        models.AssetBundle{AllImages: urls},
		TargetSeconds: 20,
	}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(fetcher.fetchedFiles) != 12 {
		t.Errorf("expected 12 declared images fetched, got %d", len(fetcher.fetchedFiles))
	}
}

func TestHighlightSubclippedFromMiddle(t *testing.T) {
	fetcher := &fakeFetcher{failVideos: map[string]bool{"http://v/broken": true}}
	prober := &fakeProber{durations: map[string]float64{
		"localvid:http://v/long": 20.0,
	}}
	p := testPipeline(t, fetcher, prober)

	assets, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle: models.AssetBundle{
			AllVideos: []string{"http://v/broken", "http://v/long", "http://v/never"},
		},
		TargetSeconds: 5,
	})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	var clip *Asset
	for i := range assets {
		if assets[i].Kind == AssetVideo {
			if clip != nil {
				t.Fatal("at most one highlight clip may be accepted")
			}
			clip = &assets[i]
		}
	}
	if clip == nil {
		t.Fatal("expected a highlight clip")
	}
	if clip.Duration != 5.0 {
		t.Errorf("expected clip capped at 5s, got %f", clip.Duration)
	}
	if clip.ClipOffset != 7.5 {
		t.Errorf("expected middle subclip offset 7.5, got %f", clip.ClipOffset)
	}
	// The first URL failed, the second succeeded, the third must not be tried.
	if len(fetcher.fetchedVideos) != 2 {
		t.Errorf("expected 2 video fetch attempts, got %v", fetcher.fetchedVideos)
	}
}

func TestSearchEscalationFillsGap(t *testing.T) {
	fetcher := &fakeFetcher{}
	prober := &fakeProber{durations: map[string]float64{
		"local:http://stock/clip.mp4": 12.0,
	}}
	p := testPipeline(t, fetcher, prober)
	// Pin to the specific term only; generic escalation has its own test.
	p.cfg.GenericTerms = nil

	imageCalls := 0
	p.imageSearch = &cascade.Cascade[services.SearchRequest, []string]{
		Capability: "image-search",
		Providers: []cascade.Provider[services.SearchRequest, []string]{{
			Name: "fake",
			Call: func(ctx context.Context, req services.SearchRequest) ([]string, error) {
				imageCalls++
				return []string{"http://img/a.jpg", "http://img/b.jpg"}, nil
			},
		}},
	}
	p.videoSearch = &cascade.Cascade[services.SearchRequest, []string]{
		Capability: "video-search",
		Providers: []cascade.Provider[services.SearchRequest, []string]{{
			Name: "fake",
			Call: func(ctx context.Context, req services.SearchRequest) ([]string, error) {
				return []string{"http://stock/clip.mp4"}, nil
			},
		}},
	}

	assets, err := p.Acquire(context.Background(), AcquireRequest{
		SearchTerms:   []string{"city skyline"},
		TargetSeconds: 12,
	})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if imageCalls != 1 {
		t.Errorf("expected one image search call, got %d", imageCalls)
	}

	kinds := map[AssetKind]int{}
	coverage := 0.0
	for _, a := range assets {
		kinds[a.Kind]++
		coverage += a.Duration
	}
	if kinds[AssetImage] != 2 {
		t.Errorf("expected 2 searched images, got %d", kinds[AssetImage])
	}
	if kinds[AssetVideo] != 1 {
		t.Errorf("expected 1 stock video, got %d", kinds[AssetVideo])
	}
	if coverage < 12 {
		t.Errorf("coverage %f below target", coverage)
	}
	// Stock clips are capped at 8s even when the source runs longer.
	for _, a := range assets {
		if a.Kind == AssetVideo && a.Duration != 8.0 {
			t.Errorf("expected stock clip capped at 8s, got %f", a.Duration)
		}
	}
}

func TestStaticFallbackAlwaysReachesTarget(t *testing.T) {
	// Every provider and download fails; the pipeline still covers the target.
	fetcher := &fakeFetcher{
		failFiles:  map[string]bool{"http://a/1.jpg": true},
		failVideos: map[string]bool{"http://v/1": true},
	}
	p := testPipeline(t, fetcher, &fakeProber{})

	assets, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle: models.AssetBundle{
			AllImages: []string{"http://a/1.jpg"},
			AllVideos: []string{"http://v/1"},
		},
		Title:         "quarterly earnings",
		TargetSeconds: 15,
	})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(assets) != 1 {
		t.Fatalf("expected only the fallback asset, got %+v", assets)
	}
	if assets[0].Kind != AssetColor || assets[0].Duration != 15 {
		t.Errorf("expected 15s solid fallback, got %+v", assets[0])
	}
}

func TestFallbackPrefersBundledLoop(t *testing.T) {
	assetsDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(assetsDir, "defaults"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assetsDir, "defaults", "ambient.mp4"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := NewStore(t.TempDir(), assetsDir)
	if err != nil {
		t.Fatal(err)
	}

	p := testPipeline(t, &fakeFetcher{}, &fakeProber{})
	p.store = store

	assets, err := p.Acquire(context.Background(), AcquireRequest{TargetSeconds: 9})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(assets) != 1 || assets[0].Kind != AssetLoop {
		t.Fatalf("expected the bundled loop, got %+v", assets)
	}
	if assets[0].Duration != 9 {
		t.Errorf("expected loop to fill the full 9s, got %f", assets[0].Duration)
	}
}

func TestSearchEscalatesToGenericTermsWhenSpecificYieldsNothing(t *testing.T) {
	// Every download fails, so the niche term cannot fill coverage; the
	// pipeline must then broaden to the generic category terms before
	// giving up.
	fetcher := &fakeFetcher{failFiles: map[string]bool{
		"http://img/niche.jpg":   true,
		"http://img/generic.jpg": true,
	}}
	p := testPipeline(t, fetcher, &fakeProber{})
	p.cfg.GenericTerms = []string{"broad category one", "broad category two"}

	var imageQueries []string
	p.imageSearch = &cascade.Cascade[services.SearchRequest, []string]{
		Capability: "image-search",
		Providers: []cascade.Provider[services.SearchRequest, []string]{{
			Name: "fake",
			Call: func(ctx context.Context, req services.SearchRequest) ([]string, error) {
				imageQueries = append(imageQueries, req.Query)
				if req.Query == "obscure lower-league fixture" {
					return []string{"http://img/niche.jpg"}, nil
				}
				return []string{"http://img/generic.jpg"}, nil
			},
		}},
	}
	var videoQueries []string
	p.videoSearch = &cascade.Cascade[services.SearchRequest, []string]{
		Capability: "video-search",
		Providers: []cascade.Provider[services.SearchRequest, []string]{{
			Name: "fake",
			Call: func(ctx context.Context, req services.SearchRequest) ([]string, error) {
				videoQueries = append(videoQueries, req.Query)
				return nil, nil
			},
		}},
	}

	if _, err := p.Acquire(context.Background(), AcquireRequest{
		SearchTerms:   []string{"obscure lower-league fixture"},
		TargetSeconds: 12,
	}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	wantQueries := []string{"obscure lower-league fixture", "broad category one", "broad category two"}
	if len(imageQueries) != len(wantQueries) {
		t.Fatalf("image search queries = %v, want %v", imageQueries, wantQueries)
	}
	for i, q := range wantQueries {
		if imageQueries[i] != q {
			t.Errorf("image query %d = %q, want %q", i, imageQueries[i], q)
		}
	}
	// Video search broadens the same way once images come up short.
	if len(videoQueries) != len(wantQueries) {
		t.Errorf("video search queries = %v, want %v", videoQueries, wantQueries)
	}
}

func TestHighlightAttemptsCappedAtThree(t *testing.T) {
	fetcher := &fakeFetcher{failVideos: map[string]bool{
		"http://v/1": true, "http://v/2": true, "http://v/3": true, "http://v/4": true,
	}}
	p := testPipeline(t, fetcher, &fakeProber{})

	if _, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle:        models.AssetBundle{AllVideos: []string{"http://v/1", "http://v/2", "http://v/3", "http://v/4"}},
		TargetSeconds: 4,
	}); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if len(fetcher.fetchedVideos) != 3 {
		t.Errorf("expected 3 highlight attempts, got %v", fetcher.fetchedVideos)
	}
}

func TestSubSecondClipsRejected(t *testing.T) {
	fetcher := &fakeFetcher{}
	prober := &fakeProber{durations: map[string]float64{
		"localvid:http://v/blip":   0.3,
		"local:http://stock/s.mp4": 0.4,
		"localvid:http://v/proper": 6.0,
	}}
	p := testPipeline(t, fetcher, prober)
	p.videoSearch = &cascade.Cascade[services.SearchRequest, []string]{
		Capability: "video-search",
		Providers: []cascade.Provider[services.SearchRequest, []string]{{
			Name: "fake",
			Call: func(ctx context.Context, req services.SearchRequest) ([]string, error) {
				return []string{"http://stock/s.mp4"}, nil
			},
		}},
	}

	assets, err := p.Acquire(context.Background(), AcquireRequest{
		Bundle:        models.AssetBundle{AllVideos: []string{"http://v/blip", "http://v/proper"}},
		TargetSeconds: 6,
	})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	for _, a := range assets {
		if a.Kind == AssetVideo && a.Duration < 1.0 {
			t.Errorf("sub-second clip must be rejected, got %+v", a)
		}
	}
	var clips int
	for _, a := range assets {
		if a.Kind == AssetVideo {
			clips++
		}
	}
	if clips != 1 {
		t.Errorf("expected only the 6s highlight accepted, got %d clips", clips)
	}
}
