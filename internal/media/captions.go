package media

import (
	"fmt"
	"os"
	"strings"

	"github.com/reelworks/newsreel/internal/services"
)

// ---------------------------------------------------------------------------
// Burned-in caption generator (ASS format).
//
// Transcribed words are grouped three at a time and shown as bold yellow
// uppercase text near the bottom of the frame, inside the platform-safe zone.
// Groups carrying exclamation marks get an emphasis style with a heavier
// outline.
// ---------------------------------------------------------------------------

const (
	captionWordsPerGroup = 3

	// Captions never run into the final frame; the last group is clamped
	// this far before the end of the video.
	captionEndGuard = 0.1

	captionFontName = "Noto Sans"
	captionFontSize = 96

	// ASS colors are &HAABBGGRR (BGR, not RGB).
	assColorYellow = "&H0000DDFF" // #FFDD00
	assColorBlack  = "&H00000000"

	captionOutline         = 7
	captionOutlineEmphasis = 12

	// Distance from the bottom on a 1920-height canvas; clear of platform
	// UI chrome (progress bar, captions toggle).
	captionMarginV = 320
)

// CaptionGroup is a short run of words displayed together.
type CaptionGroup struct {
	Text     string
	Start    float64
	End      float64
	Emphasis bool
}

// BuildCaptionGroups turns word timestamps into display groups of three.
// Group end times are clamped to totalDuration-0.1s and groups whose clamped
// window collapses to nothing are dropped. An empty word list (transcription
// failed or silence) yields an empty slice: the video ships without captions.
func BuildCaptionGroups(words []services.WordTimestamp, totalDuration float64) []CaptionGroup {
	var groups []CaptionGroup

	limit := totalDuration - captionEndGuard
	for i := 0; i < len(words); i += captionWordsPerGroup {
		end := i + captionWordsPerGroup
		if end > len(words) {
			end = len(words)
		}
		run := words[i:end]

		var parts []string
		emphasis := false
		for _, w := range run {
			clean := strings.ToUpper(strings.TrimSpace(w.Word))
			if clean == "" {
				continue
			}
			if strings.HasSuffix(clean, "!") {
				emphasis = true
			}
			parts = append(parts, clean)
		}
		if len(parts) == 0 {
			continue
		}

		g := CaptionGroup{
			Text:     strings.Join(parts, " "),
			Start:    run[0].Start,
			End:      run[len(run)-1].End,
			Emphasis: emphasis,
		}
		if g.End > limit {
			g.End = limit
		}
		if g.End <= g.Start {
			continue
		}
		groups = append(groups, g)
	}

	return groups
}

// WriteASSCaptions renders caption groups to an ASS file sized for the given
// canvas. Returns an error only on I/O failure; an empty group list produces
// a valid file with no dialogue lines.
func WriteASSCaptions(groups []CaptionGroup, outputPath string, canvasW, canvasH int) error {
	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&sb, "PlayResX: %d\n", canvasW)
	fmt.Fprintf(&sb, "PlayResY: %d\n", canvasH)
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(&sb,
		"Style: Default,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,1,0,1,%d,0,2,40,40,%d,1\n",
		captionFontName, captionFontSize,
		assColorYellow, assColorYellow, assColorBlack, assColorBlack,
		captionOutline, captionMarginV,
	)
	fmt.Fprintf(&sb,
		"Style: Emphasis,%s,%d,%s,%s,%s,%s,-1,0,0,0,100,100,1,0,1,%d,0,2,40,40,%d,1\n",
		captionFontName, captionFontSize,
		assColorYellow, assColorYellow, assColorBlack, assColorBlack,
		captionOutlineEmphasis, captionMarginV,
	)
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, g := range groups {
		style := "Default"
		if g.Emphasis {
			style = "Emphasis"
		}
		fmt.Fprintf(&sb, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
			formatASSTime(g.Start), formatASSTime(g.End), style, g.Text)
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write ASS caption file: %w", err)
	}
	return nil
}

// formatASSTime converts seconds to ASS timestamp format: H:MM:SS.CC.
func formatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}

	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	centiseconds := int((seconds - float64(int(seconds))) * 100)

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centiseconds)
}
