package main

import (
	"context"

	"github.com/spf13/cobra"
)

func playMediaCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "play-media [player] <uri|link|id>",
		Short: "Start content on a player, trying each playback strategy in turn",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector, content := "", args[0]
			if len(args) == 2 {
				selector, content = args[0], args[1]
			}
			result, err := app.service.PlayContent(ctx, selector, content, kind)
			if err != nil {
				if app.json && len(result.Attempts) > 0 {
					_ = app.printer.Print(result)
				}
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "content kind for bare ids (playlist|album|track|artist)")

	return cmd
}

func transferCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "transfer <to>",
		Short: "Move the current session to another player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			result, err := app.service.Transfer(ctx, from, args[0])
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "source player (default: active player)")

	return cmd
}

func browseCommand() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "browse [player] [content-id]",
		Short: "Browse the media catalog through a player",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector, contentID := "", ""
			switch len(args) {
			case 1:
				selector = args[0]
			case 2:
				selector, contentID = args[0], args[1]
			}
			result, err := app.service.Browse(ctx, selector, contentID, contentType)
			if err != nil {
				return err
			}
			return app.printer.Print(result)
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "", "content type of content-id")

	return cmd
}
