// Package testutil provides test utilities including sample data generation.
package testutil

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/jellyvr/pkg/jellyfin"
)

// Fictional titles and studios for test data.
// NEVER use real film, series or studio names.
var (
	MovieTitles = []string{
		"The Quiet Harbour",
		"Glass Mountains",
		"Midnight Ledger",
		"A Year of Lanterns",
		"Copper Sky",
		"The Last Cartographer",
	}

	SeriesTitles = []string{
		"Northbound",
		"Signal & Noise",
		"The Orchard Files",
	}

	Studios = []string{
		"Lumen Pictures",
		"Harbourlight",
		"Tin Whistle Films",
	}

	Genres = []string{"Drama", "Comedy", "Documentary", "Thriller", "Animation"}

	SubtitleLanguages = []string{"eng", "ger", "fre", "spa"}
)

// SampleDataGenerator produces plausible Jellyfin items.
type SampleDataGenerator struct {
	rng *rand.Rand
}

// NewSampleDataGenerator creates a generator with a random seed.
func NewSampleDataGenerator() *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewSampleDataGeneratorWithSeed creates a deterministic generator.
func NewSampleDataGeneratorWithSeed(seed int64) *SampleDataGenerator {
	return &SampleDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

func (g *SampleDataGenerator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

func (g *SampleDataGenerator) id() string {
	var b [16]byte
	g.rng.Read(b[:])
	return fmt.Sprintf("%x", b)
}

func (g *SampleDataGenerator) date() *jellyfin.Date {
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return &jellyfin.Date{Time: base.AddDate(0, 0, g.rng.Intn(9000))}
}

func (g *SampleDataGenerator) mediaSource(itemID string) jellyfin.MediaSource {
	src := jellyfin.MediaSource{
		ID:        itemID,
		Container: g.pick([]string{"mkv", "mp4"}),
		Size:      int64(g.rng.Intn(4_000_000_000)) + 1,
	}
	for i, lang := range SubtitleLanguages[:1+g.rng.Intn(len(SubtitleLanguages))] {
		src.MediaStreams = append(src.MediaStreams, jellyfin.MediaStream{
			Type:                 jellyfin.StreamTypeSubtitle,
			Index:                i + 2,
			Codec:                "srt",
			Language:             lang,
			IsTextSubtitleStream: true,
		})
	}
	return src
}

// GenerateMovie returns a movie with chapters, people and one media source.
func (g *SampleDataGenerator) GenerateMovie() jellyfin.Item {
	id := g.id()
	rating := float64(g.rng.Intn(100)) / 10
	runtime := int64(60+g.rng.Intn(90)) * 60 * 1000 * jellyfin.TicksPerMillisecond

	return jellyfin.Item{
		ID:              id,
		Name:            g.pick(MovieTitles),
		Type:            jellyfin.ItemTypeMovie,
		Overview:        "A fictional film used in tests.",
		RunTimeTicks:    runtime,
		PremiereDate:    g.date(),
		DateCreated:     g.date(),
		CommunityRating: &rating,
		Genres:          []string{g.pick(Genres)},
		Studios:         []jellyfin.NameIDPair{{Name: g.pick(Studios)}},
		People: []jellyfin.Person{
			{Name: "Ada Example", Type: "Actor", Role: "Lead"},
			{Name: "Sam Placeholder", Type: "Director"},
		},
		Chapters: []jellyfin.Chapter{
			{StartPositionTicks: 0, Name: "Opening"},
			{StartPositionTicks: runtime / 2},
		},
		MediaSources: []jellyfin.MediaSource{g.mediaSource(id)},
	}
}

// GenerateEpisode returns an episode of a random series.
func (g *SampleDataGenerator) GenerateEpisode(season, episode int) jellyfin.Item {
	id := g.id()
	return jellyfin.Item{
		ID:                id,
		Name:              fmt.Sprintf("Episode %d", episode),
		Type:              jellyfin.ItemTypeEpisode,
		RunTimeTicks:      int64(20+g.rng.Intn(40)) * 60 * 1000 * jellyfin.TicksPerMillisecond,
		PremiereDate:      g.date(),
		DateCreated:       g.date(),
		SeriesName:        g.pick(SeriesTitles),
		SeriesStudio:      g.pick(Studios),
		SeasonName:        fmt.Sprintf("Season %d", season),
		ParentIndexNumber: &season,
		IndexNumber:       &episode,
		MediaSources:      []jellyfin.MediaSource{g.mediaSource(id)},
	}
}

// GenerateLibrary returns movies followed by episodes of one season.
func (g *SampleDataGenerator) GenerateLibrary(movies, episodes int) []jellyfin.Item {
	items := make([]jellyfin.Item, 0, movies+episodes)
	for range movies {
		items = append(items, g.GenerateMovie())
	}
	for i := range episodes {
		items = append(items, g.GenerateEpisode(1, i+1))
	}
	return items
}

// NewItemID returns a random hyphenated GUID as Jellyfin may emit for ids.
func NewItemID() string {
	return uuid.NewString()
}

// StaticItemSource serves a fixed item list and counts calls.
// It satisfies library.ItemSource.
type StaticItemSource struct {
	mu    sync.Mutex
	items []jellyfin.Item
	err   error
	delay time.Duration
	calls atomic.Int32
}

// NewStaticItemSource creates a source serving items.
func NewStaticItemSource(items []jellyfin.Item) *StaticItemSource {
	return &StaticItemSource{items: items}
}

// SetItems replaces the served items.
func (s *StaticItemSource) SetItems(items []jellyfin.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
}

// SetError makes subsequent calls fail with err. A nil err clears it.
func (s *StaticItemSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetDelay makes each call block for d, to widen concurrency windows.
func (s *StaticItemSource) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many times UserItems was called.
func (s *StaticItemSource) Calls() int {
	return int(s.calls.Load())
}

// UserItems implements library.ItemSource.
func (s *StaticItemSource) UserItems(ctx context.Context, _, _ string) (*jellyfin.ItemsResult, error) {
	s.calls.Add(1)

	s.mu.Lock()
	items, err, delay := s.items, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]jellyfin.Item, len(items))
	copy(out, items)
	return &jellyfin.ItemsResult{Items: out, TotalRecordCount: len(out)}, nil
}
