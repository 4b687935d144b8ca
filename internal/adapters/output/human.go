package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/mikey-austin/media_remote/internal/core"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct {
	Out io.Writer
}

// Print renders human output.
func (p HumanPrinter) Print(v any) error {
	w := writerOr(p.Out)
	switch data := v.(type) {
	case core.PlayersResult:
		return printPlayers(w, data)
	case core.StatusResult:
		return printStatus(w, data)
	case core.ActiveResult:
		return printActive(w, data)
	case core.ChainResult:
		return printChain(w, data)
	case core.TransferResult:
		return printTransfer(w, data)
	case core.BrowseResultView:
		return printBrowse(w, data)
	default:
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
}

func printPlayers(w io.Writer, result core.PlayersResult) error {
	rows := pterm.TableData{{"", "NAME", "STATE", "KIND", "ENTITY_ID", "TARGET"}}
	for _, player := range result.Players {
		marker := ""
		if player.Active {
			marker = "*"
			if player.Override {
				marker = "@"
			}
		}
		target := ""
		if player.Target != player.EntityID {
			target = player.Target
		}
		rows = append(rows, []string{marker, player.Name, player.State, string(player.Kind), player.EntityID, target})
	}
	return renderTable(w, rows)
}

func printStatus(w io.Writer, result core.StatusResult) error {
	e := result.Entity
	item := strings.TrimSpace(strings.Join(nonEmpty(e.MediaTitle(), e.MediaArtist()), " - "))
	position := ""
	if result.Duration > 0 {
		position = fmt.Sprintf("%s/%s", formatClock(result.Position), formatClock(result.Duration))
	}
	volume := ""
	if vol, ok := e.VolumeLevel(); ok {
		volume = fmt.Sprintf("vol %d%%", int(vol*100+0.5))
	}
	if e.Muted() {
		volume = "muted"
	}

	line := strings.Join(nonEmpty(result.Player.Name, "["+e.State+"]", item, position, volume), "  ")
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	extra := nonEmpty(e.MediaAlbumName(), e.Source())
	if result.PictureURL != "" {
		extra = append(extra, result.PictureURL)
	}
	if len(extra) > 0 {
		_, err := fmt.Fprintln(w, strings.Join(extra, "  "))
		return err
	}
	return nil
}

func printActive(w io.Writer, result core.ActiveResult) error {
	active := result.Active
	if active == "" {
		active = "(none)"
	}
	line := "active " + active
	if result.Override != "" {
		line += " (selected)"
	}
	if result.Cleared {
		line += " (selection cleared)"
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

func printChain(w io.Writer, result core.ChainResult) error {
	if result.OK() {
		_, err := fmt.Fprintf(w, "playing %s on %s via %s\n", result.Content.URI, result.Target, result.Strategy)
		return err
	}
	return printAttempts(w, result.Attempts)
}

func printTransfer(w io.Writer, result core.TransferResult) error {
	if !result.Moved {
		if _, err := fmt.Fprintf(w, "selected %s (nothing to move from %s)\n", result.To, result.From); err != nil {
			return err
		}
		return printAttempts(w, result.Attempts)
	}
	_, err := fmt.Fprintf(w, "moved %s from %s to %s\n", result.ContentID, result.From, result.To)
	return err
}

func printAttempts(w io.Writer, attempts []core.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}
	rows := pterm.TableData{{"STRATEGY", "TARGET", "RESULT"}}
	for _, a := range attempts {
		res := "ok"
		if a.Err != nil {
			res = a.Err.Error()
		}
		rows = append(rows, []string{a.Strategy, a.Target, res})
	}
	return renderTable(w, rows)
}

func printBrowse(w io.Writer, view core.BrowseResultView) error {
	title := view.Result.Title
	if title == "" {
		title = view.Result.MediaContentID
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	rows := pterm.TableData{{"TITLE", "CLASS", "PLAY", "CONTENT_ID", "TYPE"}}
	for _, item := range view.Result.Children {
		play := ""
		if item.CanPlay {
			play = "yes"
		}
		rows = append(rows, []string{item.Title, item.MediaClass, play, item.MediaContentID, item.MediaContentType})
	}
	return renderTable(w, rows)
}

func renderTable(w io.Writer, rows pterm.TableData) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
