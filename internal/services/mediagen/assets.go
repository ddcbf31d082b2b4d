package mediagen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

const timestampLayout = "20060102_150405"

var ErrInvalidAssetName = errors.New("invalid asset name")

// Listing groups stored assets by kind, oldest first.
type Listing struct {
	Images []string `json:"images"`
	Videos []string `json:"videos"`
	Music  []string `json:"music"`
}

// Total returns the number of assets across all kinds.
func (l Listing) Total() int {
	return len(l.Images) + len(l.Videos) + len(l.Music)
}

// All returns every asset name, images then videos then music.
func (l Listing) All() []string {
	all := make([]string, 0, l.Total())
	all = append(all, l.Images...)
	all = append(all, l.Videos...)
	return append(all, l.Music...)
}

// AssetStore writes generated assets into a single flat directory.
type AssetStore struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func NewAssetStore(dir string) (*AssetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &AssetStore{dir: dir, now: time.Now}, nil
}

func (s *AssetStore) Dir() string {
	return s.dir
}

func (s *AssetStore) ImageName() string {
	return fmt.Sprintf("generated_scene_%s.png", s.timestamp())
}

func (s *AssetStore) VideoName(seeded bool) string {
	if seeded {
		return fmt.Sprintf("generated_video_%s.mp4", s.timestamp())
	}
	return fmt.Sprintf("generated_video_direct_%s.mp4", s.timestamp())
}

func (s *AssetStore) MusicName(sceneContext, tone string) string {
	return fmt.Sprintf("lyria_final_%s_%s_%s.wav", fileSafe(sceneContext, 48), fileSafe(tone, 16), s.timestamp())
}

func (s *AssetStore) timestamp() string {
	return s.now().Format(timestampLayout)
}

// Save writes data under name. A name already taken gets a numeric suffix.
// The file is written to a temp file first and renamed into place.
func (s *AssetStore) Save(name string, data []byte) (media.AssetRef, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	final := s.uniqueName(name)
	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp asset: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, final)); err != nil {
		return "", fmt.Errorf("store asset: %w", err)
	}
	return media.AssetRef(final), nil
}

// uniqueName must be called with mu held.
func (s *AssetStore) uniqueName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; ; i++ {
		if _, err := os.Stat(filepath.Join(s.dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}

// Read returns the bytes of a stored asset.
func (s *AssetStore) Read(ref media.AssetRef) ([]byte, error) {
	path, err := s.Path(string(ref))
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Path resolves name inside the store, rejecting anything that would
// escape the directory.
func (s *AssetStore) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// List scans the directory for known asset patterns.
func (s *AssetStore) List() (Listing, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Listing{}, fmt.Errorf("read media dir: %w", err)
	}

	type item struct {
		name string
		mod  time.Time
	}
	var images, videos, music []item
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		it := item{name: e.Name(), mod: info.ModTime()}
		switch KindOf(e.Name()) {
		case media.KindImage:
			images = append(images, it)
		case media.KindVideo:
			videos = append(videos, it)
		case media.KindMusic:
			music = append(music, it)
		}
	}

	names := func(items []item) []string {
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].mod.Equal(items[j].mod) {
				return items[i].name < items[j].name
			}
			return items[i].mod.Before(items[j].mod)
		})
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, it.name)
		}
		return out
	}

	return Listing{
		Images: names(images),
		Videos: names(videos),
		Music:  names(music),
	}, nil
}

// KindOf classifies a stored filename by its naming pattern.
func KindOf(name string) media.Kind {
	switch {
	case strings.HasPrefix(name, "generated_scene_") && strings.HasSuffix(name, ".png"):
		return media.KindImage
	case strings.HasPrefix(name, "generated_video") && strings.HasSuffix(name, ".mp4"):
		return media.KindVideo
	case strings.HasPrefix(name, "lyria_final_") && strings.HasSuffix(name, ".wav"):
		return media.KindMusic
	default:
		return ""
	}
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(filepath.Clean(name)) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidAssetName, name)
	}
	return nil
}

// fileSafe replaces spaces and punctuation with underscores and caps the
// length so free-form scene text can be embedded in a filename.
func fileSafe(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := []rune(b.String())
	if len(out) > max {
		out = out[:max]
	}
	if len(out) == 0 {
		return "scene"
	}
	return string(out)
}
