/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/ponyo877/livedeck/livepb"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/structpb"
)

type participantRow struct {
	SessionID    string
	Name         string
	Slide        string
	LastActivity string
}

// audienceCmd represents the audience command
var audienceCmd = &cobra.Command{
	Use:   "audience",
	Short: "Opens the live participant panel.",
	Long: `Shows the active participants of the logged-in presentation and the
slide each one is on, refreshed periodically. Left and right arrows move the
audience, r refreshes, q or Esc closes the panel.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		uid, err := presentationUID()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		id := viper.GetInt64(presentationIDKey)
		if id == 0 {
			fmt.Fprintln(os.Stderr, "Error: presentation id unknown; run login first")
			return
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = 10 * time.Second
		}
		if err := runAudienceUI(uid, id, interval); err != nil {
			fmt.Fprintf(os.Stderr, "Audience UI error: %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(audienceCmd)
	audienceCmd.Flags().Duration("interval", 10*time.Second, "Refresh interval of the panel")
}

func runAudienceUI(uid string, id int64, interval time.Duration) error {
	app := tview.NewApplication()

	table := tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	table.SetBorder(true).SetTitle(" " + uid + " ")

	status := tview.NewTextView().SetDynamicColors(true)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(status, 1, 0, false)

	app.SetRoot(flex, true).SetFocus(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refresh := func() {
		reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
		defer reqCancel()

		rows, err := fetchParticipants(reqCtx, id)
		index, known, slideErr := currentSlide(reqCtx, uid)
		app.QueueUpdateDraw(func() {
			if err != nil {
				status.SetText(fmt.Sprintf("[red]%v", err))
				return
			}
			fillParticipantTable(table, rows)
			slide := "-"
			if slideErr == nil && known {
				slide = strconv.Itoa(index)
			}
			status.SetText(fmt.Sprintf("[green]slide %s[white]  %d active  updated %s  (←/→ move, r refresh, q quit)",
				slide, len(rows), time.Now().Format("15:04:05")))
		})
	}

	move := func(delta int) {
		go func() {
			reqCtx, reqCancel := context.WithTimeout(ctx, 5*time.Second)
			defer reqCancel()
			index, _, err := currentSlide(reqCtx, uid)
			if err == nil {
				err = publishSlideQuiet(reqCtx, uid, nextIndex(index, delta))
			}
			if err != nil {
				app.QueueUpdateDraw(func() {
					status.SetText(fmt.Sprintf("[red]%v", err))
				})
				return
			}
			refresh()
		}()
	}

	go func() {
		refresh()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEscape:
			cancel()
			app.Stop()
			return nil
		case tcell.KeyLeft:
			move(-1)
			return nil
		case tcell.KeyRight:
			move(1)
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q':
				cancel()
				app.Stop()
				return nil
			case 'r':
				go refresh()
				return nil
			}
		}
		return event
	})

	return app.Run()
}

func fetchParticipants(ctx context.Context, id int64) ([]participantRow, error) {
	req, err := livepb.NewStruct(map[string]any{livepb.FieldPresentationID: id})
	if err != nil {
		return nil, err
	}
	res, err := liveClient.ListActiveParticipants(callContext(ctx), req)
	if err != nil {
		return nil, err
	}
	return participantRows(res), nil
}

func participantRows(res *structpb.Struct) []participantRow {
	values := livepb.GetList(res, livepb.FieldParticipants)
	rows := make([]participantRow, 0, len(values))
	for _, v := range values {
		p := v.GetStructValue()
		if p == nil {
			continue
		}
		slide := "-"
		if livepb.Has(p, livepb.FieldCurrentSlide) {
			slide = strconv.FormatInt(livepb.GetInt(p, livepb.FieldCurrentSlide), 10)
		}
		lastActivity := livepb.GetString(p, livepb.FieldLastActivity)
		if t, err := time.Parse(time.RFC3339, lastActivity); err == nil {
			lastActivity = t.Local().Format("15:04:05")
		}
		rows = append(rows, participantRow{
			SessionID:    livepb.GetString(p, livepb.FieldSessionID),
			Name:         livepb.GetString(p, livepb.FieldName),
			Slide:        slide,
			LastActivity: lastActivity,
		})
	}
	return rows
}

func fillParticipantTable(table *tview.Table, rows []participantRow) {
	table.Clear()
	for col, title := range []string{"NAME", "SLIDE", "LAST ACTIVITY", "SESSION"} {
		table.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1))
	}
	for i, r := range rows {
		for col, text := range []string{r.Name, r.Slide, r.LastActivity, r.SessionID} {
			table.SetCell(i+1, col, tview.NewTableCell(text).SetExpansion(1))
		}
	}
}
