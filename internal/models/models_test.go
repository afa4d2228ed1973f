package models

import (
	"encoding/json"
	"testing"
)

func TestJSONBMarshal(t *testing.T) {
	j := JSONB{
		"tags": []string{"transfer", "derby"},
		"mood": "epic",
	}

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal JSONB: %v", err)
	}

	if data == nil {
		t.Fatal("expected non-nil data")
	}

	// Verify it's valid JSON
	var result map[string]interface{}
	if err := json.Unmarshal(data.([]byte), &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["mood"] != "epic" {
		t.Errorf("expected mood=epic, got %v", result["mood"])
	}
}

func TestJSONBMarshalNil(t *testing.T) {
	var j JSONB

	data, err := j.Value()
	if err != nil {
		t.Fatalf("failed to marshal nil JSONB: %v", err)
	}

	if string(data.([]byte)) != "{}" {
		t.Errorf("expected empty object for nil JSONB, got %s", data)
	}
}

func TestJSONBScan(t *testing.T) {
	jsonData := []byte(`{"views": 1200, "platform": "youtube"}`)

	var j JSONB
	if err := j.Scan(jsonData); err != nil {
		t.Fatalf("failed to scan: %v", err)
	}

	if j["platform"] != "youtube" {
		t.Errorf("expected platform=youtube, got %v", j["platform"])
	}

	if j["views"].(float64) != 1200 {
		t.Errorf("expected views=1200, got %v", j["views"])
	}
}

func TestScriptUnmarshalString(t *testing.T) {
	var s Script
	if err := json.Unmarshal([]byte(`"A short narration."`), &s); err != nil {
		t.Fatalf("failed to unmarshal plain script: %v", err)
	}

	if got := s.Narration(); got != "A short narration." {
		t.Errorf("unexpected narration: %q", got)
	}
}

func TestScriptUnmarshalBlocks(t *testing.T) {
	raw := `{
		"blocks": [{"text": "First block."}, {"text": "  "}, {"text": "Second block."}],
		"search_terms": ["stadium crowd"]
	}`

	var s Script
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("failed to unmarshal structured script: %v", err)
	}

	if got := s.Narration(); got != "First block. Second block." {
		t.Errorf("unexpected narration: %q", got)
	}

	if len(s.SearchTerms) != 1 || s.SearchTerms[0] != "stadium crowd" {
		t.Errorf("unexpected search terms: %v", s.SearchTerms)
	}
}

func TestJobStatusTerminal(t *testing.T) {
	cases := map[JobStatus]bool{
		JobStatusPending:    false,
		JobStatusProcessing: false,
		JobStatusCompleted:  true,
		JobStatusError:      true,
		JobStatusPublished:  true,
	}

	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestMusicMood(t *testing.T) {
	cases := map[JobType]string{
		JobTypeHighlight: "epic",
		JobTypeNews:      "happy",
		JobTypeStory:     "rock",
		JobTypeAnalysis:  "sad",
		JobType("weird"): "epic",
	}

	for typ, want := range cases {
		if got := typ.MusicMood(); got != want {
			t.Errorf("MusicMood(%s) = %q, want %q", typ, got, want)
		}
	}
}

func TestFormatResolution(t *testing.T) {
	if w, h := FormatShorts.Resolution(); w != 1080 || h != 1920 {
		t.Errorf("shorts resolution = %dx%d", w, h)
	}
	if w, h := FormatLandscape.Resolution(); w != 1920 || h != 1080 {
		t.Errorf("landscape resolution = %dx%d", w, h)
	}
	if w, h := VideoFormat("").Resolution(); w != 1080 || h != 1920 {
		t.Errorf("default resolution = %dx%d", w, h)
	}
}
