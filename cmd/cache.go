package main

import (
	"context"
	"fmt"

	"github.com/omp1/Spotify-To-Youtube-Playlist-Converter/internal/repositories"
	"github.com/urfave/cli/v3"
)

// CacheList prints the cached track matches.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := repositories.NewMatchRepository(db).List()
	if err != nil {
		return fmt.Errorf("failed to list cached matches: %w", err)
	}

	if len(matches) == 0 {
		r.writePlain("Match cache is empty.\n")
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(matches, true)
	}

	r.writePlain("%d cached matches:\n", len(matches))
	for _, match := range matches {
		r.writePlain("  %s → %s\n", match.DisplayName(), match.VideoID())
	}
	return nil
}

// CacheClear empties the match cache.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := repositories.NewMatchRepository(db).Clear()
	if err != nil {
		return fmt.Errorf("failed to clear match cache: %w", err)
	}

	r.logger.Info("match cache cleared", "removed", removed)
	r.writePlain("Removed %d cached matches.\n", removed)
	return nil
}

// cacheCommand manages the local track match cache
func cacheCommand(r *Runner) *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clear the local track match cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached track matches",
				Flags: []cli.Flag{
					configFlag,
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Remove all cached track matches",
				Flags:  []cli.Flag{configFlag},
				Action: r.CacheClear,
			},
		},
	}
}
