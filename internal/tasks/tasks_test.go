package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/state"
)

type mockReader struct {
	items []models.WorkItem
	err   error
	calls int
}

func (m *mockReader) Tracks(ctx context.Context, playlistID string) ([]models.WorkItem, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.items, nil
}

func (m *mockReader) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	return &models.Playlist{ID: playlistID, Name: "Test Playlist", TrackCount: len(m.items)}, nil
}

type mockResolver struct {
	fn    func(searchKey string) (string, error)
	calls []string
}

func (m *mockResolver) Resolve(ctx context.Context, searchKey string) (string, error) {
	m.calls = append(m.calls, searchKey)
	if m.fn == nil {
		return "vid-" + searchKey, nil
	}
	return m.fn(searchKey)
}

type mockWriter struct {
	fn    func(playlistID, videoID string) error
	calls []string
}

func (m *mockWriter) Attach(ctx context.Context, playlistID, videoID string) error {
	m.calls = append(m.calls, videoID)
	if m.fn == nil {
		return nil
	}
	return m.fn(playlistID, videoID)
}

type mockProvisioner struct {
	id        string
	err       error
	creations int
}

func (m *mockProvisioner) Ensure(ctx context.Context, title, description, existingID string) (string, error) {
	if existingID != "" {
		return existingID, nil
	}
	m.creations++
	if m.err != nil {
		return "", m.err
	}
	return m.id, nil
}

// failingStore wraps a real store and fails Save after a set number of writes.
type failingStore struct {
	inner     state.Store
	savesLeft int
}

func (s *failingStore) Load() (*state.Record, error) { return s.inner.Load() }
func (s *failingStore) Reset() error                 { return s.inner.Reset() }

func (s *failingStore) Save(record *state.Record) error {
	if s.savesLeft <= 0 {
		return errors.New("disk full")
	}
	s.savesLeft--
	return s.inner.Save(record)
}

type memoryCache struct {
	entries map[string]string
	stores  int
}

func (c *memoryCache) Lookup(searchKey string) (string, error) {
	return c.entries[searchKey], nil
}

func (c *memoryCache) Store(searchKey, videoID, displayName string) error {
	c.stores++
	c.entries[searchKey] = videoID
	return nil
}

func workItems(names ...string) []models.WorkItem {
	items := make([]models.WorkItem, len(names))
	for i, name := range names {
		items[i] = models.WorkItem{DisplayName: name, SearchKey: name}
	}
	return items
}

func newTestStore(t *testing.T) *state.FileStore {
	t.Helper()
	store, err := state.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func newTestEngine(deps Deps, opts Options) *PlaylistEngine {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBaseMS == 0 {
		opts.BackoffBaseMS = 1 // keep test retries fast
	}
	return NewPlaylistEngine(deps, opts)
}

func runOpts() RunOpts {
	return RunOpts{SourcePlaylistID: "PLsrc", Title: "Converted", Description: "Converted from Spotify playlist"}
}

func mustLoad(t *testing.T, store state.Store) *state.Record {
	t.Helper()
	record, err := store.Load()
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if record == nil {
		t.Fatal("expected a progress record")
	}
	return record
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("all items succeed", func(t *testing.T) {
		store := newTestStore(t)
		writer := &mockWriter{}
		provisioner := &mockProvisioner{id: "PLdest"}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two", "three")},
			Resolver:    &mockResolver{},
			Writer:      writer,
			Provisioner: provisioner,
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Status != models.RunCompleted {
			t.Errorf("expected completed, got %s", result.Status)
		}
		if result.Matched != 3 || result.Missed != 0 || result.Processed != 3 {
			t.Errorf("unexpected counters: %+v", result)
		}

		record := mustLoad(t, store)
		if record.NextIndex != 3 {
			t.Errorf("expected next index 3, got %d", record.NextIndex)
		}
		if record.PlaylistID != "PLdest" {
			t.Errorf("expected playlist PLdest, got %s", record.PlaylistID)
		}
		if len(writer.calls) != 3 {
			t.Errorf("expected 3 attach calls, got %d", len(writer.calls))
		}
	})

	t.Run("no match advances the index", func(t *testing.T) {
		store := newTestStore(t)
		resolver := &mockResolver{fn: func(key string) (string, error) {
			if key == "two" {
				return "", nil
			}
			return "vid-" + key, nil
		}}
		writer := &mockWriter{}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two", "three")},
			Resolver:    resolver,
			Writer:      writer,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Status != models.RunCompleted {
			t.Errorf("expected completed, got %s", result.Status)
		}
		if result.Matched != 2 || result.Missed != 1 {
			t.Errorf("expected 2 matched 1 missed, got %+v", result)
		}

		if record := mustLoad(t, store); record.NextIndex != 3 {
			t.Errorf("expected next index 3, got %d", record.NextIndex)
		}

		want := []string{"vid-one", "vid-three"}
		if len(writer.calls) != 2 || writer.calls[0] != want[0] || writer.calls[1] != want[1] {
			t.Errorf("expected attaches %v, got %v", want, writer.calls)
		}
	})

	t.Run("transient attach exhaustion pauses at the failing item", func(t *testing.T) {
		store := newTestStore(t)
		attempts := 0
		writer := &mockWriter{fn: func(playlistID, videoID string) error {
			if videoID == "vid-two" {
				attempts++
				return &shared.APIError{Service: "youtube", Status: 429}
			}
			return nil
		}}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two", "three")},
			Resolver:    &mockResolver{},
			Writer:      writer,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("paused run should not return an error, got %v", err)
		}

		if result.Status != models.RunPaused {
			t.Fatalf("expected paused, got %s", result.Status)
		}
		if result.ResumeIndex != 1 {
			t.Errorf("expected resume index 1, got %d", result.ResumeIndex)
		}
		if result.Cause == nil {
			t.Error("expected a cause")
		}
		if attempts != 3 {
			t.Errorf("expected 3 attach attempts, got %d", attempts)
		}

		// No-skip: the persisted index stays at the failing item.
		if record := mustLoad(t, store); record.NextIndex != 1 {
			t.Errorf("expected next index 1, got %d", record.NextIndex)
		}

		// Restart with a healthy writer resumes at item two, never item one.
		healthy := &mockWriter{}
		engine = newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two", "three")},
			Resolver:    &mockResolver{},
			Writer:      healthy,
			Provisioner: &mockProvisioner{id: "PLother"},
			Store:       store,
		}, Options{})

		result, err = engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Status != models.RunCompleted {
			t.Errorf("expected completed, got %s", result.Status)
		}
		if len(healthy.calls) != 2 || healthy.calls[0] != "vid-two" {
			t.Errorf("expected resume from vid-two, got %v", healthy.calls)
		}
	})

	t.Run("permanent attach failure pauses without retries", func(t *testing.T) {
		store := newTestStore(t)
		attempts := 0
		writer := &mockWriter{fn: func(playlistID, videoID string) error {
			attempts++
			return &shared.APIError{Service: "youtube", Status: 401}
		}}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    &mockResolver{},
			Writer:      writer,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Status != models.RunPaused {
			t.Errorf("expected paused, got %s", result.Status)
		}
		if attempts != 1 {
			t.Errorf("permanent failure should not retry, got %d attempts", attempts)
		}
		if record := mustLoad(t, store); record.NextIndex != 0 {
			t.Errorf("expected next index 0, got %d", record.NextIndex)
		}
	})

	t.Run("resolver transport failure pauses", func(t *testing.T) {
		store := newTestStore(t)
		resolver := &mockResolver{fn: func(key string) (string, error) {
			return "", &shared.APIError{Service: "youtube", Status: 503}
		}}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    resolver,
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Status != models.RunPaused {
			t.Errorf("expected paused, got %s", result.Status)
		}
		if len(resolver.calls) != 3 {
			t.Errorf("expected 3 resolve attempts, got %d", len(resolver.calls))
		}
	})

	t.Run("first run creates and persists the playlist before processing", func(t *testing.T) {
		store := newTestStore(t)
		provisioner := &mockProvisioner{id: "PLdest"}

		// Reader that checks the playlist id is already durable when the
		// first resolve happens.
		var recordedID string
		resolver := &mockResolver{fn: func(key string) (string, error) {
			record, err := store.Load()
			if err == nil && record != nil {
				recordedID = record.PlaylistID
			}
			return "vid-" + key, nil
		}}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    resolver,
			Writer:      &mockWriter{},
			Provisioner: provisioner,
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if provisioner.creations != 1 {
			t.Errorf("expected 1 creation, got %d", provisioner.creations)
		}
		if recordedID != "PLdest" {
			t.Errorf("playlist id should be durable before the first item, got %q", recordedID)
		}
		if result.PlaylistID != "PLdest" {
			t.Errorf("expected PLdest, got %s", result.PlaylistID)
		}
	})

	t.Run("stored playlist id is reused without creation", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.Save(&state.Record{NextIndex: 0, PlaylistID: "PLexisting"}); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}

		provisioner := &mockProvisioner{id: "PLnew"}
		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: provisioner,
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if provisioner.creations != 0 {
			t.Errorf("expected zero creations, got %d", provisioner.creations)
		}
		if result.PlaylistID != "PLexisting" {
			t.Errorf("expected PLexisting, got %s", result.PlaylistID)
		}
	})

	t.Run("shrunken source completes immediately", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.Save(&state.Record{NextIndex: 5, PlaylistID: "PLdest"}); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}

		resolver := &mockResolver{}
		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two", "three", "four")},
			Resolver:    resolver,
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Status != models.RunCompleted {
			t.Errorf("expected completed, got %s", result.Status)
		}
		if result.Processed != 0 {
			t.Errorf("expected zero processed items, got %d", result.Processed)
		}
		if len(resolver.calls) != 0 {
			t.Errorf("expected zero resolve calls, got %d", len(resolver.calls))
		}
	})

	t.Run("completed sync re-run processes nothing", func(t *testing.T) {
		store := newTestStore(t)
		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two")},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		if _, err := engine.Run(ctx, nil, runOpts()); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		second := &mockWriter{}
		engine = newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two")},
			Resolver:    &mockResolver{},
			Writer:      second,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		if result.Processed != 0 {
			t.Errorf("expected zero processed, got %d", result.Processed)
		}
		if len(second.calls) != 0 {
			t.Errorf("expected zero attach calls on re-run, got %d", len(second.calls))
		}
	})

	t.Run("corrupted progress record fails the run", func(t *testing.T) {
		store := newTestStore(t)
		if err := store.Save(&state.Record{NextIndex: 1}); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       corruptStore{},
		}, Options{})

		if _, err := engine.Run(ctx, nil, runOpts()); !errors.Is(err, shared.ErrStateCorrupted) {
			t.Errorf("expected ErrStateCorrupted, got %v", err)
		}
	})

	t.Run("source fetch failure aborts before any progress", func(t *testing.T) {
		store := newTestStore(t)
		engine := newTestEngine(Deps{
			Source:      &mockReader{err: &shared.APIError{Service: "spotify", Status: 500}},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		if _, err := engine.Run(ctx, nil, runOpts()); err == nil {
			t.Fatal("expected error")
		}

		record, err := store.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if record != nil {
			t.Errorf("no progress should be recorded, got %+v", record)
		}
	})

	t.Run("playlist creation failure is terminal", func(t *testing.T) {
		store := newTestStore(t)
		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{err: &shared.APIError{Service: "youtube", Status: 401}},
			Store:       store,
		}, Options{})

		if _, err := engine.Run(ctx, nil, runOpts()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unwritable progress record fails the run", func(t *testing.T) {
		inner := newTestStore(t)
		// First save (playlist id) succeeds, the per-item save fails.
		store := &failingStore{inner: inner, savesLeft: 1}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two")},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err == nil {
			t.Fatal("expected error")
		}
		if result == nil || result.Status != models.RunFailed {
			t.Errorf("expected failed result, got %+v", result)
		}
	})

	t.Run("duplicate membership succeeds when configured", func(t *testing.T) {
		store := newTestStore(t)
		writer := &mockWriter{fn: func(playlistID, videoID string) error {
			return &shared.APIError{Service: "youtube", Status: 409, Reason: "videoAlreadyInPlaylist"}
		}}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one")},
			Resolver:    &mockResolver{},
			Writer:      writer,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{SkipDuplicates: true})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Status != models.RunCompleted {
			t.Errorf("expected completed, got %s", result.Status)
		}
		if len(writer.calls) != 1 {
			t.Errorf("duplicate should not retry, got %d calls", len(writer.calls))
		}
	})

	t.Run("match cache short-circuits the resolver", func(t *testing.T) {
		store := newTestStore(t)
		cache := &memoryCache{entries: map[string]string{"one": "vid-cached"}}
		resolver := &mockResolver{}
		writer := &mockWriter{}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two")},
			Resolver:    resolver,
			Writer:      writer,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
			Cache:       cache,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Matched != 2 {
			t.Errorf("expected 2 matched, got %d", result.Matched)
		}
		if len(resolver.calls) != 1 || resolver.calls[0] != "two" {
			t.Errorf("expected resolver called only for 'two', got %v", resolver.calls)
		}
		if writer.calls[0] != "vid-cached" {
			t.Errorf("expected cached video attached first, got %v", writer.calls)
		}
		if !result.Items[0].FromCache {
			t.Error("expected first item to come from cache")
		}
		if cache.stores != 1 {
			t.Errorf("expected 1 cache store, got %d", cache.stores)
		}
	})

	t.Run("progress updates are emitted and never block", func(t *testing.T) {
		store := newTestStore(t)
		engine := newTestEngine(Deps{
			Source:      &mockReader{items: workItems("one", "two", "three")},
			Resolver:    &mockResolver{},
			Writer:      &mockWriter{},
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		// Deliberately undersized and unconsumed channel
		progressCh := make(chan ProgressUpdate, 1)
		if _, err := engine.Run(ctx, progressCh, runOpts()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		select {
		case update := <-progressCh:
			if update.Message == "" {
				t.Error("expected a message on the first update")
			}
		default:
			t.Error("expected at least one progress update")
		}
	})
}

// corruptStore simulates an unreadable progress record.
type corruptStore struct{}

func (corruptStore) Load() (*state.Record, error) {
	return nil, fmt.Errorf("%w: unexpected end of JSON input", shared.ErrStateCorrupted)
}
func (corruptStore) Save(*state.Record) error { return nil }
func (corruptStore) Reset() error             { return nil }

func TestEngineMonotonicity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// Each run pauses one item further in; the persisted index never
	// decreases across restarts.
	items := workItems("one", "two", "three")
	lastSeen := -1

	for run := 0; run < len(items); run++ {
		failAt := fmt.Sprintf("vid-%s", items[run].SearchKey)
		writer := &mockWriter{fn: func(playlistID, videoID string) error {
			if videoID == failAt {
				return &shared.APIError{Service: "youtube", Status: 429}
			}
			return nil
		}}

		engine := newTestEngine(Deps{
			Source:      &mockReader{items: items},
			Resolver:    &mockResolver{},
			Writer:      writer,
			Provisioner: &mockProvisioner{id: "PLdest"},
			Store:       store,
		}, Options{})

		result, err := engine.Run(ctx, nil, runOpts())
		if err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}
		if result.Status != models.RunPaused {
			t.Fatalf("run %d: expected paused, got %s", run, result.Status)
		}

		record := mustLoad(t, store)
		if record.NextIndex < lastSeen {
			t.Fatalf("run %d: next index decreased from %d to %d", run, lastSeen, record.NextIndex)
		}
		if record.NextIndex != run {
			t.Errorf("run %d: expected pause at index %d, got %d", run, run, record.NextIndex)
		}
		lastSeen = record.NextIndex
	}

	// Final run with a healthy writer completes the remainder.
	engine := newTestEngine(Deps{
		Source:      &mockReader{items: items},
		Resolver:    &mockResolver{},
		Writer:      &mockWriter{},
		Provisioner: &mockProvisioner{id: "PLdest"},
		Store:       store,
	}, Options{})

	result, err := engine.Run(ctx, nil, runOpts())
	if err != nil {
		t.Fatalf("final run failed: %v", err)
	}
	if result.Status != models.RunCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if record := mustLoad(t, store); record.NextIndex != len(items) {
		t.Errorf("expected final index %d, got %d", len(items), record.NextIndex)
	}
}

func TestEngineRunHistory(t *testing.T) {
	ctx := context.Background()

	recorder := &recordingHistory{}
	store := newTestStore(t)

	engine := newTestEngine(Deps{
		Source:      &mockReader{items: workItems("one", "two")},
		Resolver:    &mockResolver{},
		Writer:      &mockWriter{},
		Provisioner: &mockProvisioner{id: "PLdest"},
		Store:       store,
		History:     recorder,
	}, Options{})

	if _, err := engine.Run(ctx, nil, runOpts()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(recorder.runs))
	}

	run := recorder.runs[0]
	if run.Status() != models.RunCompleted {
		t.Errorf("expected completed history row, got %s", run.Status())
	}
	if run.Matched() != 2 {
		t.Errorf("expected 2 matched in history, got %d", run.Matched())
	}
	if run.DestPlaylistID() != "PLdest" {
		t.Errorf("expected PLdest in history, got %s", run.DestPlaylistID())
	}
}

type recordingHistory struct {
	runs []*models.Run
}

func (r *recordingHistory) Create(run *models.Run) error {
	r.runs = append(r.runs, run)
	return nil
}
