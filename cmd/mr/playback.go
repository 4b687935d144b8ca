package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mikey-austin/media_remote/internal/core"
)

type transportFunc func(s core.Service, ctx context.Context, selector string) error

func transportCommand(use, short string, run transportFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [player]",
		Short: short,
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()
			return run(app.service, ctx, selectorArg(args))
		},
	}
}

func playCommand() *cobra.Command {
	return transportCommand("play", "Resume playback", core.Service.Play)
}

func pauseCommand() *cobra.Command {
	return transportCommand("pause", "Pause playback", core.Service.Pause)
}

func toggleCommand() *cobra.Command {
	return transportCommand("toggle", "Toggle playback", core.Service.Toggle)
}

func stopCommand() *cobra.Command {
	return transportCommand("stop", "Stop playback", core.Service.Stop)
}

func nextCommand() *cobra.Command {
	return transportCommand("next", "Skip to the next track", core.Service.Next)
}

func prevCommand() *cobra.Command {
	return transportCommand("prev", "Skip to the previous track", core.Service.Prev)
}

func seekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seek [player] <pos|+n|-n>",
		Short: "Seek to a position (90, 1:30, 1m30s) or by an offset",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector, pos := "", args[0]
			if len(args) == 2 {
				selector, pos = args[0], args[1]
			}
			return app.service.Seek(ctx, selector, pos)
		},
	}
}
