package media

import (
	"context"
	"fmt"
	"log"

	"github.com/reelworks/newsreel/internal/models"
	"github.com/reelworks/newsreel/internal/services"
)

// Segment is one planned slot on the visual timeline. Segments after the
// first fade in over the previous one, so their start times overlap by the
// crossfade duration.
type Segment struct {
	Asset        Asset
	Start        float64
	Duration     float64
	TransitionIn bool
}

// PlanSegments lays assets onto a contiguous timeline of at least
// totalDuration seconds. Crossfades consume screen time (each transition
// overlaps the previous segment by fade seconds), so the planner stretches
// the last stretchable segment, or appends a solid frame, to make the
// effective length come out to exactly totalDuration.
func PlanSegments(assets []Asset, totalDuration, fade float64) []Segment {
	var segments []Segment
	if len(assets) == 0 {
		return []Segment{{
			Asset:    Asset{Kind: AssetColor, Duration: totalDuration},
			Duration: totalDuration,
		}}
	}

	effective := 0.0
	for _, a := range assets {
		// A segment shorter than two crossfade windows cannot host both an
		// incoming and an outgoing fade; its xfade offsets would run
		// backwards and the whole filtergraph would be rejected.
		if a.Duration < fade*2 {
			continue
		}

		n := len(segments)
		seg := Segment{Asset: a, Duration: a.Duration, TransitionIn: n > 0}
		if n == 0 {
			seg.Start = 0
			effective = seg.Duration
		} else {
			seg.Start = segments[n-1].Start + segments[n-1].Duration - fade
			effective += seg.Duration - fade
		}
		segments = append(segments, seg)
		if effective >= totalDuration {
			break
		}
	}

	// Every usable asset was too short for a transition chain; fall back to
	// a single solid segment so the job still renders.
	if len(segments) == 0 {
		return []Segment{{
			Asset:    Asset{Kind: AssetColor, Duration: totalDuration},
			Duration: totalDuration,
		}}
	}

	// Trim overshoot off the last segment, keeping a floor so the closing
	// crossfade still has material to work with.
	last := len(segments) - 1
	if excess := effective - totalDuration; excess > 0 {
		minDur := fade * 2
		if segments[last].Duration-excess >= minDur {
			segments[last].Duration -= excess
			effective = totalDuration
		}
	}

	// Cover any shortfall left by crossfade overlap.
	if deficit := totalDuration - effective; deficit > 0.001 {
		if segments[last].Asset.Kind == AssetVideo {
			// Video clips cannot stretch; close with a solid frame.
			seg := Segment{
				Asset:        Asset{Kind: AssetColor, Duration: deficit + fade},
				Start:        segments[last].Start + segments[last].Duration - fade,
				Duration:     deficit + fade,
				TransitionIn: true,
			}
			segments = append(segments, seg)
		} else {
			segments[last].Duration += deficit
		}
	}

	return segments
}

// Compositor renders planned segments into a single silent visual track.
type Compositor struct {
	ffmpeg       *services.FFmpegService
	store        *Store
	crossfade    float64
	kenBurnsZoom float64
}

func NewCompositor(ffmpeg *services.FFmpegService, store *Store, crossfade, kenBurnsZoom float64) *Compositor {
	return &Compositor{
		ffmpeg:       ffmpeg,
		store:        store,
		crossfade:    crossfade,
		kenBurnsZoom: kenBurnsZoom,
	}
}

// Build renders each segment at the format's resolution and joins them with
// crossfades. Returns the path of the assembled silent video.
func (c *Compositor) Build(ctx context.Context, jobID string, assets []Asset, format models.VideoFormat, totalDuration float64) (string, error) {
	width, height := format.Resolution()
	plan := PlanSegments(assets, totalDuration, c.crossfade)

	log.Printf("[Compose] Rendering %d segments at %dx%d for %.1fs", len(plan), width, height, totalDuration)

	var rendered []services.SegmentFile
	var cleanup []string
	defer c.ffmpeg.Cleanup(cleanup...)

	for i, seg := range plan {
		segPath := c.ffmpeg.CreateTempFile(fmt.Sprintf("seg_%s_%d.mp4", jobID, i))
		cleanup = append(cleanup, segPath)

		var err error
		switch seg.Asset.Kind {
		case AssetImage:
			padded := c.ffmpeg.CreateTempFile(fmt.Sprintf("frame_%s_%d.jpg", jobID, i))
			cleanup = append(cleanup, padded)
			if err = PadToCanvas(seg.Asset.Path, padded, width, height); err == nil {
				err = c.ffmpeg.RenderStillSegment(ctx, padded, segPath, seg.Duration, width, height, c.kenBurnsZoom)
			}
		case AssetVideo:
			err = c.ffmpeg.RenderVideoSegment(ctx, seg.Asset.Path, segPath, seg.Asset.ClipOffset, seg.Duration, width, height, true)
		case AssetLoop:
			err = c.ffmpeg.RenderLoopSegment(ctx, seg.Asset.Path, segPath, seg.Duration, width, height)
		case AssetColor:
			err = c.ffmpeg.RenderColorSegment(ctx, segPath, seg.Duration, width, height)
		default:
			err = fmt.Errorf("unknown asset kind %q", seg.Asset.Kind)
		}
		if err != nil {
			// A single broken asset must not sink the job; substitute a
			// solid frame of the same length.
			log.Printf("[Compose] Segment %d failed (%v), substituting solid frame", i, err)
			if err = c.ffmpeg.RenderColorSegment(ctx, segPath, seg.Duration, width, height); err != nil {
				return "", fmt.Errorf("rendering segment %d: %w", i, err)
			}
		}

		rendered = append(rendered, services.SegmentFile{Path: segPath, Duration: seg.Duration})
	}

	visualPath := c.ffmpeg.CreateTempFile(fmt.Sprintf("visual_%s.mp4", jobID))
	if err := c.ffmpeg.ConcatenateWithCrossfade(ctx, rendered, visualPath, c.crossfade); err != nil {
		return "", fmt.Errorf("assembling timeline: %w", err)
	}

	return visualPath, nil
}
