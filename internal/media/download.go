package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	minDownloadBytes = 1024
	ytdlpTimeout     = 2 * time.Minute
)

// ErrInsufficientContent marks a fetch that returned too little data to be a
// real asset — tracking pixels, error pages, empty responses.
var ErrInsufficientContent = errors.New("downloaded content too small to be a usable asset")

// placeholderMarkers flag CDN "image unavailable" stand-ins by URL substring.
var placeholderMarkers = []string{"placeholder", "no-image", "noimage", "default_img", "spacer."}

// Downloader fetches remote assets into the temp directory. Plain files come
// over HTTP with a browser user agent; page URLs (highlight clips) go through
// yt-dlp.
type Downloader struct {
	tempDir    string
	httpClient *http.Client
}

func NewDownloader(tempDir string) *Downloader {
	return &Downloader{
		tempDir:    tempDir,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// IsPlaceholderURL reports whether the URL points at a known stand-in image
// rather than real content.
func IsPlaceholderURL(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// FetchFile downloads a direct asset URL to a temp file with the given
// extension. Responses under 1KB are rejected as tracking pixels or error
// pages.
func (d *Downloader) FetchFile(ctx context.Context, url, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d for %s", resp.StatusCode, url)
	}

	path := filepath.Join(d.tempDir, fmt.Sprintf("dl_%s%s", uuid.New().String()[:8], ext))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing download: %w", err)
	}
	if written < minDownloadBytes {
		os.Remove(path)
		return "", fmt.Errorf("%w: %d bytes from %s", ErrInsufficientContent, written, url)
	}

	return path, nil
}

// FetchVideo downloads a video through yt-dlp, which handles both direct
// file URLs and page URLs (highlight embeds). Returns the local mp4 path.
func (d *Downloader) FetchVideo(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ytdlpTimeout)
	defer cancel()

	stem := fmt.Sprintf("vid_%s", uuid.New().String()[:8])
	template := filepath.Join(d.tempDir, stem+".%(ext)s")

	args := []string{
		"-f", "bestvideo[ext=mp4][height<=1080]+bestaudio[ext=m4a]/best[ext=mp4]/best",
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--no-warnings",
		"--socket-timeout", "20",
		"-o", template,
		url,
	}

	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("yt-dlp failed for %s: %w (%s)", url, err, truncateOutput(output))
	}

	matches, err := filepath.Glob(filepath.Join(d.tempDir, stem+".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("yt-dlp produced no output for %s", url)
	}
	return matches[0], nil
}

func truncateOutput(output []byte) string {
	s := strings.TrimSpace(string(output))
	if len(s) > 300 {
		s = s[len(s)-300:]
	}
	return s
}
