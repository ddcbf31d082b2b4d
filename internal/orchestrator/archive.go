package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Abdullah0x0/dreamdirector/internal/services/mediagen"
	"github.com/Abdullah0x0/dreamdirector/pkg/media"
	"github.com/Abdullah0x0/dreamdirector/pkg/story"
)

var ErrNotArchived = errors.New("adventure not found in archive")

// Export is a complete copy of an adventure, used for the PDF export and
// the archive.
type Export struct {
	AdventureID string                             `json:"adventure_id"`
	Title       string                             `json:"title"`
	Request     string                             `json:"story_request"`
	StoryType   string                             `json:"story_type"`
	Hook        string                             `json:"hook"`
	Status      story.StatusSnapshot               `json:"status"`
	History     []story.Event                      `json:"history"`
	Media       mediagen.Listing                   `json:"media"`
	Characters  map[string]media.AssetRef          `json:"character_references"`
	Locations   map[string]media.AssetRef          `json:"location_references"`
	VisualStyle media.StyleContext                 `json:"visual_style"`
	MusicThemes []string                           `json:"music_themes"`
	Knowledge   map[string]map[string]story.Memory `json:"world_knowledge"`
	ExportedAt  time.Time                          `json:"exported_at"`
}

const archivePrefix = "adventure:"

func archiveKey(id string) string {
	return archivePrefix + id
}

// Export copies the current adventure.
func (o *Orchestrator) Export() (Export, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.Started() {
		return Export{}, story.ErrNotStarted
	}
	return o.exportLocked(), nil
}

func (o *Orchestrator) exportLocked() Export {
	st := o.state
	history := make([]story.Event, len(st.History))
	copy(history, st.History)
	return Export{
		AdventureID: st.ID.String(),
		Title:       st.Title,
		Request:     st.Request,
		StoryType:   st.ScenarioKey,
		Hook:        st.Hook,
		Status:      st.Status(),
		History:     history,
		Media:       o.listingLocked(),
		Characters:  st.Visual.Characters.Snapshot(),
		Locations:   st.Visual.Locations.Snapshot(),
		VisualStyle: st.Visual.Context(),
		MusicThemes: append([]string{}, st.MusicThemes...),
		Knowledge:   st.Knowledge(),
		ExportedAt:  o.now().UTC(),
	}
}

// MediaFiles lists the assets of the current adventure, including ad-hoc
// ones.
func (o *Orchestrator) MediaFiles() mediagen.Listing {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.listingLocked()
}

func (o *Orchestrator) listingLocked() mediagen.Listing {
	names := func(refs []media.AssetRef) []string {
		out := make([]string, 0, len(refs))
		for _, r := range refs {
			out = append(out, r.String())
		}
		return out
	}
	return mediagen.Listing{
		Images: names(o.filesLocked(media.KindImage)),
		Videos: names(o.filesLocked(media.KindVideo)),
		Music:  names(o.filesLocked(media.KindMusic)),
	}
}

// archiveCurrent stores a fresh snapshot of adventure id once it has
// concluded. Writers are serialised and each one re-reads the state, so the
// newest snapshot is always the last one written.
func (o *Orchestrator) archiveCurrent(ctx context.Context, id uuid.UUID) {
	if o.archive == nil {
		return
	}
	o.archiveMu.Lock()
	defer o.archiveMu.Unlock()

	o.mu.Lock()
	if o.state.ID != id || o.state.Stage != story.StageConcluded {
		o.mu.Unlock()
		return
	}
	exp := o.exportLocked()
	o.mu.Unlock()

	o.store(ctx, exp)
}

// store archives a concluded adventure. Failures are logged only.
func (o *Orchestrator) store(ctx context.Context, exp Export) {
	if o.archive == nil {
		return
	}
	data, err := json.Marshal(exp)
	if err != nil {
		o.log.Error("Failed to marshal adventure archive", "adventure_id", exp.AdventureID, "error", err)
		return
	}
	if err := o.archive.Put(ctx, archiveKey(exp.AdventureID), data, o.archiveTTL); err != nil {
		o.log.Warn("Failed to archive adventure", "adventure_id", exp.AdventureID, "error", err)
		return
	}
	o.log.Debug("Adventure archived", "adventure_id", exp.AdventureID)
}

// Archived loads a concluded adventure by id.
func (o *Orchestrator) Archived(ctx context.Context, id string) (*Export, error) {
	if o.archive == nil {
		return nil, ErrNotArchived
	}
	raw, found, err := o.archive.Fetch(ctx, archiveKey(id))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	if !found {
		return nil, ErrNotArchived
	}
	var exp Export
	if err := json.Unmarshal(raw, &exp); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return &exp, nil
}

// ArchiveEntry summarises one archived adventure.
type ArchiveEntry struct {
	AdventureID string    `json:"adventure_id"`
	Title       string    `json:"title"`
	StoryType   string    `json:"story_type"`
	ChoicesMade int       `json:"choices_made"`
	ExportedAt  time.Time `json:"exported_at"`
}

// ListArchived returns the archived adventures, newest first. Entries that
// expire or fail to decode between listing and reading are skipped.
func (o *Orchestrator) ListArchived(ctx context.Context) ([]ArchiveEntry, error) {
	entries := []ArchiveEntry{}
	if o.archive == nil {
		return entries, nil
	}
	keys, err := o.archive.Keys(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}

	for _, key := range keys {
		raw, found, err := o.archive.Fetch(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if !found {
			continue
		}
		var exp Export
		if err := json.Unmarshal(raw, &exp); err != nil {
			o.log.Warn("Skipping unreadable archive entry", "key", key, "error", err)
			continue
		}
		entries = append(entries, ArchiveEntry{
			AdventureID: exp.AdventureID,
			Title:       exp.Title,
			StoryType:   exp.StoryType,
			ChoicesMade: exp.Status.ChoicesMade,
			ExportedAt:  exp.ExportedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ExportedAt.After(entries[j].ExportedAt)
	})
	return entries, nil
}
