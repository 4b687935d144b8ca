package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func volumeCommand() *cobra.Command {
	var mute bool
	var unmute bool

	cmd := &cobra.Command{
		Use:   "vol [player] [<0..100>|<+/-n>]",
		Short: "Set volume",
		Long:  "Set volume to 0..100 or by a relative +n/-n. Put -- before a negative offset: mr vol den -- -5",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			if mute && unmute {
				return errBothFlags
			}
			var mutePtr *bool
			if mute || unmute {
				val := mute
				mutePtr = &val
			}

			selector, arg := splitVolumeArgs(args, mutePtr != nil)
			if arg == "" && mutePtr == nil {
				return fmt.Errorf("volume value required")
			}
			return app.service.SetVolume(ctx, selector, arg, mutePtr)
		},
	}

	cmd.Flags().BoolVar(&mute, "mute", false, "mute output")
	cmd.Flags().BoolVar(&unmute, "unmute", false, "unmute output")

	return cmd
}

func shuffleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shuffle [player] [on|off|toggle]",
		Short: "Set or toggle shuffle",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector, mode := splitModeArgs(args, "on", "off", "toggle", "true", "false")
			return app.service.SetShuffle(ctx, selector, mode)
		},
	}
}

func repeatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repeat [player] [off|all|one]",
		Short: "Set repeat, or cycle off, all, one",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			selector, mode := splitModeArgs(args, "off", "all", "one")
			result, err := app.service.SetRepeat(ctx, selector, mode)
			if err != nil {
				return err
			}
			if app.json {
				return app.printer.Print(map[string]string{"repeat": string(result)})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "repeat %s\n", result)
			return err
		},
	}
}

func splitVolumeArgs(args []string, muting bool) (string, string) {
	switch len(args) {
	case 1:
		if looksLikeVolume(args[0]) && !muting {
			return "", args[0]
		}
		return args[0], ""
	case 2:
		return args[0], args[1]
	}
	return "", ""
}

// splitModeArgs treats a lone argument as a mode when it is one of modes,
// otherwise as a player selector.
func splitModeArgs(args []string, modes ...string) (string, string) {
	switch len(args) {
	case 1:
		for _, mode := range modes {
			if strings.EqualFold(args[0], mode) {
				return "", args[0]
			}
		}
		return args[0], ""
	case 2:
		return args[0], args[1]
	}
	return "", ""
}

func looksLikeVolume(arg string) bool {
	if arg == "" {
		return false
	}
	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		return true
	}
	return arg[0] >= '0' && arg[0] <= '9'
}
