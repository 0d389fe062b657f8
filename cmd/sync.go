package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/repositories"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/services"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/state"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/tasks"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/ui"
	"github.com/urfave/cli/v3"
)

// SyncRun executes one resumable sync from a Spotify playlist to YouTube.
//
// Exit codes follow the run's terminal status: 0 completed, 2 paused (resume
// by running the command again), 1 failed.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	sourceID := cmd.String("source")

	if err := os.MkdirAll(config.State.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	lock := state.NewLock(config.State.Dir)
	if err := lock.Acquire(); err != nil {
		if errors.Is(err, shared.ErrRunLocked) {
			return cli.Exit("another sync is already running against this state directory", 1)
		}
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer lock.Release()

	// The watch view owns the terminal, so engine logs go to a file.
	logger := r.logger
	if cmd.Bool("watch") {
		fileLogger, logErr := shared.NewFileLogger(filepath.Join(config.State.Dir, "sync.log"))
		if logErr != nil {
			return fmt.Errorf("failed to open log file: %w", logErr)
		}
		logger = fileLogger
	}

	title := cmd.String("title")
	engine := r.engine
	var cleanup func()

	if engine == nil {
		var err error
		engine, cleanup, err = r.buildEngine(ctx, config, sourceID, &title, logger)
		if err != nil {
			return err
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	opts := tasks.RunOpts{
		SourcePlaylistID: sourceID,
		Title:            title,
		Description:      cmd.String("description"),
	}

	r.logger.Info("starting sync", "source", sourceID, "state_dir", config.State.Dir)

	var result *tasks.SyncResult
	var err error

	if cmd.Bool("watch") {
		model := ui.NewModel(ctx, engine, opts)
		if _, teaErr := tea.NewProgram(model).Run(); teaErr != nil {
			return fmt.Errorf("watch view failed: %w", teaErr)
		}
		result, err = model.Result()
	} else {
		result, err = r.runWithPlainProgress(ctx, engine, opts)
	}

	if err != nil && result == nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return r.reportResult(result, err)
}

// buildEngine wires the real services, store, and database-backed cache and
// history into a PlaylistEngine. When no title was given, the source
// playlist's name is used for the destination.
func (r *Runner) buildEngine(ctx context.Context, config *shared.Config, sourceID string, title *string, logger *log.Logger) (tasks.SyncEngine, func(), error) {
	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     config.Credentials.Spotify.ClientID,
		"client_secret": config.Credentials.Spotify.ClientSecret,
		"redirect_uri":  config.Credentials.Spotify.RedirectURI,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := spotify.Authenticate(ctx, map[string]string{
		"access_token": config.Credentials.Spotify.AccessToken,
	}); err != nil {
		return nil, nil, fmt.Errorf("spotify authentication failed: %w", err)
	}

	youtube := services.NewYouTubeService(config.Credentials.YouTube.BaseURL)
	if err := youtube.Authenticate(ctx, map[string]string{
		"access_token": config.Credentials.YouTube.AccessToken,
	}); err != nil {
		return nil, nil, fmt.Errorf("youtube authentication failed: %w", err)
	}

	store, err := state.NewFileStore(config.State.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open progress store: %w", err)
	}

	if *title == "" {
		playlist, err := spotify.Playlist(ctx, sourceID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to fetch source playlist name: %w", err)
		}
		*title = playlist.Name
	}

	deps := tasks.Deps{
		Source:      spotify,
		Resolver:    youtube,
		Writer:      youtube,
		Provisioner: services.NewProvisioner(youtube, config.Sync.PrivacyStatus),
		Store:       store,
		Logger:      logger,
	}

	// Cache and history are best effort; the sync runs without them when the
	// database is unavailable.
	cleanup := func() {}
	if db, dbErr := r.openDatabase(config); dbErr != nil {
		logger.Warn("database unavailable, match cache and run history disabled", "error", dbErr)
	} else {
		deps.Cache = repositories.NewMatchCacheAdapter(repositories.NewMatchRepository(db))
		deps.History = repositories.NewRunRepository(db)
		cleanup = func() { db.Close() }
	}

	engine := tasks.NewPlaylistEngine(deps, tasks.Options{
		MaxAttempts:    config.Sync.MaxAttempts,
		BackoffBaseMS:  config.Sync.BackoffBaseMS,
		RateLimit:      config.Sync.RateLimit,
		SkipDuplicates: config.Sync.SkipDuplicates,
	})
	return engine, cleanup, nil
}

// runWithPlainProgress streams per-item progress lines to the output while
// the engine runs.
func (r *Runner) runWithPlainProgress(ctx context.Context, engine tasks.SyncEngine, opts tasks.RunOpts) (*tasks.SyncResult, error) {
	progressCh := make(chan tasks.ProgressUpdate, 50)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progressCh {
			switch update.Phase {
			case tasks.ResumeState, tasks.FetchSource, tasks.CreatePlaylist:
				r.writePlain("%s\n", update.Message)
			case tasks.SearchTracks, tasks.AttachTrack:
				r.writePlain("  %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, progressCh, opts)
	close(progressCh)
	wg.Wait()
	return result, err
}

// reportResult prints the terminal summary and maps the run status to an
// exit code.
func (r *Runner) reportResult(result *tasks.SyncResult, runErr error) error {
	if result == nil {
		return cli.Exit("sync produced no result", 1)
	}

	switch result.Status {
	case models.RunCompleted:
		r.writePlainln("✓ Sync complete: %d tracks, %d added, %d unmatched", result.TotalItems, result.Matched, result.Missed)
		r.writePlain("Playlist: %s\n", result.PlaylistID)
		return nil

	case models.RunPaused:
		r.writePlainln("Sync paused at track %d of %d: %v", result.ResumeIndex+1, result.TotalItems, result.Cause)
		r.writePlain("Run the command again to resume where it stopped.\n")
		return cli.Exit("", 2)

	default:
		if runErr != nil {
			return cli.Exit(fmt.Sprintf("sync failed: %v", runErr), 1)
		}
		return cli.Exit(fmt.Sprintf("sync failed: %v", result.Cause), 1)
	}
}

// SyncStatus prints the stored progress record.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	store, err := state.NewFileStore(config.State.Dir)
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}

	record, err := store.Load()
	if err != nil {
		if errors.Is(err, shared.ErrStateCorrupted) {
			return cli.Exit(fmt.Sprintf("progress record is corrupted: %v\nuse 'sync reset' to discard it", err), 1)
		}
		return err
	}

	if record == nil {
		r.writePlain("No sync in progress.\n")
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(record, true)
	}

	r.writePlain("Next track index: %d\n", record.NextIndex)
	r.writePlain("Destination playlist: %s\n", record.PlaylistID)
	r.writePlain("Last updated: %s\n", record.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

// SyncReset discards the stored progress record, abandoning the current sync.
func (r *Runner) SyncReset(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	store, err := state.NewFileStore(config.State.Dir)
	if err != nil {
		return fmt.Errorf("failed to open progress store: %w", err)
	}

	if err := store.Reset(); err != nil {
		return fmt.Errorf("failed to reset progress record: %w", err)
	}

	r.logger.Info("progress record discarded", "state_dir", config.State.Dir)
	r.writePlain("Progress record discarded. The next sync starts from the beginning.\n")
	return nil
}

// SyncHistory lists recent engine runs from the database.
func (r *Runner) SyncHistory(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).ListRecent(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to list run history: %w", err)
	}

	if len(runs) == 0 {
		r.writePlain("No runs recorded.\n")
		return nil
	}

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-9s  %s → %s  %d/%d added",
			run.StartedAt().Format("2006-01-02 15:04"),
			run.Status(),
			run.SourcePlaylistID(),
			run.DestPlaylistID(),
			run.Matched(),
			run.TotalItems(),
		)
		if run.Status() == models.RunPaused {
			line += fmt.Sprintf("  (resume at %d)", run.ResumeIndex())
		}
		r.writePlain("%s\n", line)
	}
	return nil
}

func syncCommand(r *Runner) *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}

	return &cli.Command{
		Name:  "sync",
		Usage: "Run and inspect playlist syncs",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Sync a Spotify playlist to YouTube, resuming if interrupted",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:     "source",
						Usage:    "Source Spotify playlist ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Destination playlist title (default: source playlist name)",
					},
					&cli.StringFlag{
						Name:  "description",
						Usage: "Destination playlist description",
						Value: "Converted from Spotify playlist",
					},
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Show a live progress view",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "status",
				Usage: "Show the stored progress record",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SyncStatus,
			},
			{
				Name:  "reset",
				Usage: "Discard the stored progress record",
				Flags: []cli.Flag{configFlag},
				Action: r.SyncReset,
			},
			{
				Name:  "history",
				Usage: "List recent sync runs",
				Flags: []cli.Flag{
					configFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
				},
				Action: r.SyncHistory,
			},
		},
	}
}
