package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/models"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/state"
	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/tasks"
	tu "github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/testing"
	"github.com/urfave/cli/v3"
)

func newTestRunner(t *testing.T, engine tasks.SyncEngine) (*Runner, *bytes.Buffer) {
	t.Helper()

	config := shared.DefaultConfig()
	config.State.Dir = t.TempDir()

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Output: output,
		Engine: engine,
	})
	return runner, output
}

func runCLI(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{
		Name:     "sp2yt",
		Commands: r.register(),
		// Suppress the library's default HandleExitCoder, which would
		// os.Exit the test process; exitCode() inspects the returned error.
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	return app.Run(context.Background(), append([]string{"sp2yt"}, args...))
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("expected an exit coder, got %v", err)
	}
	return coder.ExitCode()
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output == nil {
				t.Error("expected default output to be set")
			}
		})
	})

	t.Run("SyncStatus", func(t *testing.T) {
		t.Run("without a record", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)

			if err := runCLI(t, runner, "sync", "status"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "No sync in progress") {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("with a record", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)

			store, err := state.NewFileStore(runner.config.State.Dir)
			if err != nil {
				t.Fatalf("failed to create store: %v", err)
			}
			if err := store.Save(&state.Record{NextIndex: 7, PlaylistID: "PLdest"}); err != nil {
				t.Fatalf("failed to seed record: %v", err)
			}

			if err := runCLI(t, runner, "sync", "status"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			got := output.String()
			if !strings.Contains(got, "7") || !strings.Contains(got, "PLdest") {
				t.Errorf("unexpected output: %s", got)
			}
		})

		t.Run("json output", func(t *testing.T) {
			runner, output := newTestRunner(t, nil)

			store, _ := state.NewFileStore(runner.config.State.Dir)
			if err := store.Save(&state.Record{NextIndex: 2, PlaylistID: "PLdest"}); err != nil {
				t.Fatalf("failed to seed record: %v", err)
			}

			if err := runCLI(t, runner, "sync", "status", "--json"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), `"next_index": 2`) {
				t.Errorf("unexpected output: %s", output.String())
			}
		})
	})

	t.Run("SyncReset", func(t *testing.T) {
		runner, output := newTestRunner(t, nil)

		store, err := state.NewFileStore(runner.config.State.Dir)
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := store.Save(&state.Record{NextIndex: 3, PlaylistID: "PLdest"}); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}

		if err := runCLI(t, runner, "sync", "reset"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "discarded") {
			t.Errorf("unexpected output: %s", output.String())
		}

		record, err := store.Load()
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if record != nil {
			t.Errorf("expected record to be gone, got %+v", record)
		}
	})

	t.Run("SyncRun", func(t *testing.T) {
		t.Run("completed run exits zero", func(t *testing.T) {
			engine := &tu.MockEngine{Result: &tasks.SyncResult{
				Status:     models.RunCompleted,
				PlaylistID: "PLdest",
				TotalItems: 3,
				Matched:    3,
			}}
			runner, output := newTestRunner(t, engine)

			err := runCLI(t, runner, "sync", "run", "--source", "PLsrc", "--title", "Mix")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if engine.Calls != 1 {
				t.Errorf("expected 1 engine run, got %d", engine.Calls)
			}
			if engine.LastOpts.SourcePlaylistID != "PLsrc" {
				t.Errorf("unexpected opts: %+v", engine.LastOpts)
			}
			if !strings.Contains(output.String(), "Sync complete") {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("paused run exits two", func(t *testing.T) {
			cause := errors.New("quota exceeded")
			engine := &tu.MockEngine{Result: &tasks.SyncResult{
				Status:      models.RunPaused,
				PlaylistID:  "PLdest",
				TotalItems:  5,
				ResumeIndex: 2,
				Cause:       cause,
			}}
			runner, output := newTestRunner(t, engine)

			err := runCLI(t, runner, "sync", "run", "--source", "PLsrc", "--title", "Mix")
			if code := exitCode(t, err); code != 2 {
				t.Fatalf("expected exit code 2, got %d (%v)", code, err)
			}
			if !strings.Contains(output.String(), "paused at track 3") {
				t.Errorf("unexpected output: %s", output.String())
			}
		})

		t.Run("failed run exits one", func(t *testing.T) {
			engine := &tu.MockEngine{Result: &tasks.SyncResult{
				Status: models.RunFailed,
				Cause:  errors.New("disk full"),
			}}
			runner, _ := newTestRunner(t, engine)

			err := runCLI(t, runner, "sync", "run", "--source", "PLsrc", "--title", "Mix")
			if code := exitCode(t, err); code != 1 {
				t.Fatalf("expected exit code 1, got %d (%v)", code, err)
			}
		})

		t.Run("held run lock fails fast", func(t *testing.T) {
			engine := &tu.MockEngine{Result: &tasks.SyncResult{Status: models.RunCompleted}}
			runner, _ := newTestRunner(t, engine)

			lock := state.NewLock(runner.config.State.Dir)
			if err := lock.Acquire(); err != nil {
				t.Fatalf("failed to hold lock: %v", err)
			}
			defer lock.Release()

			err := runCLI(t, runner, "sync", "run", "--source", "PLsrc", "--title", "Mix")
			if code := exitCode(t, err); code != 1 {
				t.Fatalf("expected exit code 1, got %d (%v)", code, err)
			}
			if engine.Calls != 0 {
				t.Errorf("engine should not run while locked, got %d calls", engine.Calls)
			}
		})
	})
}
