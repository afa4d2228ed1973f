package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrRenderTimeout marks a final encode that blew its wall-clock budget.
// The worker maps it to a distinct job error message.
var ErrRenderTimeout = errors.New("render exceeded wall-clock budget")

const outputFPS = 30

// FFmpegService shells out to ffmpeg/ffprobe for every media operation:
// segment rendering, crossfade assembly, audio mixing and the final encode.
type FFmpegService struct {
	tempDir string
}

func NewFFmpegService(tempDir string) *FFmpegService {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		panic(fmt.Sprintf("failed to create temp dir: %v", err))
	}
	return &FFmpegService{tempDir: tempDir}
}

// MediaDuration returns the duration of any audio or video file in seconds.
func (s *FFmpegService) MediaDuration(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	cmd := exec.CommandContext(ctx, "ffprobe", args...)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", path, err)
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// RenderStillSegment turns a pre-padded still frame into a video segment with
// a slow linear push-in (1.0 -> 1.0+zoomRatio over the full duration). The
// image is upscaled 2x before zoompan to avoid sub-pixel jitter.
func (s *FFmpegService) RenderStillSegment(ctx context.Context, imagePath, outputPath string, duration float64, width, height int, zoomRatio float64) error {
	frames := int(duration * outputFPS)
	if frames < 1 {
		frames = 1
	}

	filter := fmt.Sprintf(
		"scale=%d:%d,zoompan=z='1+%f*on/%d':d=%d:x='iw/2-(iw/zoom/2)':y='ih/2-(ih/zoom/2)':s=%dx%d:fps=%d,format=yuv420p",
		width*2, height*2, zoomRatio, frames, frames, width, height, outputFPS,
	)

	args := []string{
		"-loop", "1",
		"-i", imagePath,
		"-vf", filter,
		"-t", fmt.Sprintf("%.3f", duration),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-an",
		"-y",
		outputPath,
	}

	return s.runFFmpeg(ctx, args, "render still segment")
}

// RenderVideoSegment normalizes a source clip into a segment: crop-to-fill
// at the target resolution, capped at maxDuration, audio stripped. When
// fingerprintBreak is set the clip is mirrored and zoomed 5% so content-ID
// systems see a different frame sequence. startOffset selects a subclip.
func (s *FFmpegService) RenderVideoSegment(ctx context.Context, videoPath, outputPath string, startOffset, maxDuration float64, width, height int, fingerprintBreak bool) error {
	var filters []string
	if fingerprintBreak {
		filters = append(filters, "hflip")
		// Overscan 5% then crop back to target: shifts every pixel.
		filters = append(filters, fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase",
			evenDim(float64(width)*1.05), evenDim(float64(height)*1.05)))
	} else {
		filters = append(filters, fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase", width, height))
	}
	filters = append(filters,
		fmt.Sprintf("crop=%d:%d", width, height),
		fmt.Sprintf("fps=%d", outputFPS),
		"format=yuv420p",
	)

	args := []string{}
	if startOffset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", startOffset))
	}
	args = append(args,
		"-i", videoPath,
		"-t", fmt.Sprintf("%.3f", maxDuration),
		"-vf", strings.Join(filters, ","),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-an",
		"-y",
		outputPath,
	)

	return s.runFFmpeg(ctx, args, "render video segment")
}

// RenderLoopSegment loops a short ambient clip to exactly the requested
// duration. Used by the static fallback when nothing else covers the tail.
func (s *FFmpegService) RenderLoopSegment(ctx context.Context, loopPath, outputPath string, duration float64, width, height int) error {
	filter := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,fps=%d,format=yuv420p",
		width, height, width, height, outputFPS)

	args := []string{
		"-stream_loop", "-1",
		"-i", loopPath,
		"-t", fmt.Sprintf("%.3f", duration),
		"-vf", filter,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-an",
		"-y",
		outputPath,
	}

	return s.runFFmpeg(ctx, args, "render loop segment")
}

// RenderColorSegment emits a solid dark frame for the requested duration.
// Absolute last resort; the video always reaches full length.
func (s *FFmpegService) RenderColorSegment(ctx context.Context, outputPath string, duration float64, width, height int) error {
	src := fmt.Sprintf("color=c=0x101018:s=%dx%d:r=%d:d=%.3f", width, height, outputFPS, duration)

	args := []string{
		"-f", "lavfi",
		"-i", src,
		"-vf", "format=yuv420p",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-an",
		"-y",
		outputPath,
	}

	return s.runFFmpeg(ctx, args, "render color segment")
}

// SegmentFile is a rendered segment plus its measured duration. Crossfade
// offsets are computed from the real durations, not the planned ones.
type SegmentFile struct {
	Path     string
	Duration float64
}

// ConcatenateWithCrossfade chains segments with xfade transitions. With one
// segment it copies; with N it builds N-1 xfade nodes whose offsets account
// for the overlap each fade consumes.
func (s *FFmpegService) ConcatenateWithCrossfade(ctx context.Context, segments []SegmentFile, outputPath string, fade float64) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to concatenate")
	}
	if len(segments) == 1 {
		args := []string{"-i", segments[0].Path, "-c", "copy", "-y", outputPath}
		return s.runFFmpeg(ctx, args, "copy single segment")
	}

	args := []string{}
	for _, seg := range segments {
		args = append(args, "-i", seg.Path)
	}

	var filter strings.Builder
	prev := "[0:v]"
	offset := 0.0
	for i := 1; i < len(segments); i++ {
		offset += segments[i-1].Duration - fade
		out := fmt.Sprintf("[x%d]", i)
		if i == len(segments)-1 {
			out = "[vout]"
		}
		fmt.Fprintf(&filter, "%s[%d:v]xfade=transition=fade:duration=%.3f:offset=%.3f%s;",
			prev, i, fade, offset, out)
		prev = out
	}

	args = append(args,
		"-filter_complex", strings.TrimSuffix(filter.String(), ";"),
		"-map", "[vout]",
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-crf", "23",
		"-y",
		outputPath,
	)

	return s.runFFmpeg(ctx, args, "concatenate with crossfade")
}

// EncodeFinal muxes the assembled visual track with narration, optional
// background music and optional burned-in captions, at exactly totalDuration.
// It tries the hardware encoder first and falls back to software; a deadline
// hit on the passed context is reported as ErrRenderTimeout.
func (s *FFmpegService) EncodeFinal(ctx context.Context, visualPath, narrationPath, musicPath, subtitlePath, outputPath string, totalDuration float64) error {
	err := s.encodeFinalWith(ctx, "h264_nvenc", visualPath, narrationPath, musicPath, subtitlePath, outputPath, totalDuration)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ErrRenderTimeout
	}

	log.Printf("[FFmpeg] Hardware encode failed (%v), falling back to libx264", err)
	err = s.encodeFinalWith(ctx, "libx264", visualPath, narrationPath, musicPath, subtitlePath, outputPath, totalDuration)
	if err != nil && ctx.Err() != nil {
		return ErrRenderTimeout
	}
	return err
}

func (s *FFmpegService) encodeFinalWith(ctx context.Context, codec, visualPath, narrationPath, musicPath, subtitlePath, outputPath string, totalDuration float64) error {
	args := []string{
		"-i", visualPath,
		"-i", narrationPath,
	}
	hasMusic := musicPath != ""
	if hasMusic {
		args = append(args, "-stream_loop", "-1", "-i", musicPath)
	}

	var filter strings.Builder
	filter.WriteString(buildFinalVideoFilter(subtitlePath, totalDuration))
	videoLabel := "[vout]"

	audioLabel := "1:a"
	if hasMusic {
		fadeStart := totalDuration - 2.0
		if fadeStart < 0 {
			fadeStart = 0
		}
		// Music ducked under narration, fading out over the last two seconds.
		fmt.Fprintf(&filter, "[2:a]volume=0.10,afade=t=out:st=%.3f:d=2[bg];[1:a][bg]amix=inputs=2:duration=first:dropout_transition=0[aout]", fadeStart)
		audioLabel = "[aout]"
	}

	args = append(args, "-filter_complex", strings.TrimSuffix(filter.String(), ";"))

	args = append(args,
		"-map", videoLabel,
		"-map", audioLabel,
		"-t", fmt.Sprintf("%.3f", totalDuration),
		"-c:v", codec,
	)
	if codec == "h264_nvenc" {
		args = append(args, "-preset", "p4")
	} else {
		args = append(args, "-preset", "ultrafast", "-crf", "23")
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "192k",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)

	return s.runFFmpeg(ctx, args, fmt.Sprintf("final encode (%s)", codec))
}

// finalFadeOutSeconds softens the hard cut where the visual track is
// truncated to the narration-driven length.
const finalFadeOutSeconds = 0.4

// buildFinalVideoFilter chains optional caption burn-in with the closing
// fade-out into the [vout] node of the final encode's filtergraph.
func buildFinalVideoFilter(subtitlePath string, totalDuration float64) string {
	fadeStart := totalDuration - finalFadeOutSeconds
	if fadeStart < 0 {
		fadeStart = 0
	}

	var chain strings.Builder
	chain.WriteString("[0:v]")
	if subtitlePath != "" {
		fmt.Fprintf(&chain, "ass='%s',", escapeFFmpegFilterPath(subtitlePath))
	}
	fmt.Fprintf(&chain, "fade=t=out:st=%.3f:d=%.3f[vout];", fadeStart, finalFadeOutSeconds)
	return chain.String()
}

func (s *FFmpegService) runFFmpeg(ctx context.Context, args []string, op string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s failed: %w", op, err)
	}
	return nil
}

// escapeFFmpegFilterPath escapes special characters in file paths for FFmpeg
// filter syntax. Filter strings treat colons, backslashes, and quotes specially.
func escapeFFmpegFilterPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "\\\\")
	path = strings.ReplaceAll(path, ":", "\\:")
	path = strings.ReplaceAll(path, "'", "'\\''")
	return path
}

// evenDim rounds a dimension to the nearest even integer; yuv420p requires
// even width and height.
func evenDim(v float64) int {
	n := int(v + 0.5)
	if n%2 != 0 {
		n++
	}
	return n
}

// CreateTempFile returns a path inside the service's temp directory.
func (s *FFmpegService) CreateTempFile(filename string) string {
	return filepath.Join(s.tempDir, filename)
}

// Cleanup removes temporary files.
func (s *FFmpegService) Cleanup(paths ...string) {
	for _, path := range paths {
		os.Remove(path)
	}
}
