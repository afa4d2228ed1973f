package media

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// Store owns the on-disk layout for job artifacts and bundled assets.
//
//	<root>/audios/   narration tracks
//	<root>/images/   accepted still frames
//	<root>/videos/   final outputs (video_<job_id>.mp4)
//	<root>/temp/     intermediates, removed after each job
//
// Bundled assets (background music by mood, fallback loops) live under a
// separate read-only assets directory shipped with the image.
type Store struct {
	root      string
	assetsDir string
}

func NewStore(root, assetsDir string) (*Store, error) {
	for _, sub := range []string{"audios", "images", "videos", "temp"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating media dir %s: %w", sub, err)
		}
	}
	return &Store{root: root, assetsDir: assetsDir}, nil
}

func (s *Store) TempDir() string {
	return filepath.Join(s.root, "temp")
}

func (s *Store) TempFile(name string) string {
	return filepath.Join(s.root, "temp", name)
}

func (s *Store) NarrationPath(jobID string) string {
	return filepath.Join(s.root, "audios", fmt.Sprintf("narration_%s.mp3", jobID))
}

func (s *Store) ImagePath(name string) string {
	return filepath.Join(s.root, "images", name)
}

// VideoPath is the canonical final artifact location for a job.
func (s *Store) VideoPath(jobID string) string {
	return filepath.Join(s.root, "videos", fmt.Sprintf("video_%s.mp4", jobID))
}

// Music picks a random track for the mood from assets/music/<mood>/. If the
// mood directory is empty it falls back to any mp3 under assets/music/, and
// returns "" when there is no music at all (the mix step just skips it).
func (s *Store) Music(mood string) string {
	moodDir := filepath.Join(s.assetsDir, "music", mood)
	if track := randomFile(moodDir, ".mp3"); track != "" {
		return track
	}

	var tracks []string
	filepath.Walk(filepath.Join(s.assetsDir, "music"), func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && strings.HasSuffix(path, ".mp3") {
			tracks = append(tracks, path)
		}
		return nil
	})
	if len(tracks) == 0 {
		return ""
	}
	return tracks[rand.Intn(len(tracks))]
}

// FallbackLoop returns a bundled ambient clip for the static fallback, or ""
// when none is shipped (the compositor then uses a solid color frame).
func (s *Store) FallbackLoop() string {
	return randomFile(filepath.Join(s.assetsDir, "defaults"), ".mp4")
}

func randomFile(dir, ext string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var matches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			matches = append(matches, filepath.Join(dir, e.Name()))
		}
	}
	if len(matches) == 0 {
		return ""
	}
	return matches[rand.Intn(len(matches))]
}

// Cleanup removes files, ignoring misses.
func (s *Store) Cleanup(paths ...string) {
	for _, path := range paths {
		if path != "" {
			os.Remove(path)
		}
	}
}
