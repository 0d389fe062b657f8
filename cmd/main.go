package main

import (
	"context"
	"errors"
	"os"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	app := &cli.Command{
		Name:     "sp2yt",
		Usage:    "Convert Spotify playlists to YouTube playlists, resumably",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			if msg := coder.Error(); msg != "" {
				logger.Error(msg)
			}
			os.Exit(coder.ExitCode())
		}
		logger.Fatalf("application error: %v", err)
	}
}
