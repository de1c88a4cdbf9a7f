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

	"github.com/ponyo877/livedeck/livepb"
	"github.com/spf13/cobra"
)

var gotoCmd = &cobra.Command{
	Use:   "goto <slide_index>",
	Short: "Moves the audience to a slide.",
	Long: `Publishes a slide change for the current presentation. Indices are
zero-based; every subscriber of the presentation channel receives the new
index.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		index, err := strconv.Atoi(args[0])
		if err != nil || index < 0 {
			fmt.Fprintf(os.Stderr, "Invalid slide index: %s\n", args[0])
			return
		}
		runSlideCommand(func(ctx context.Context, uid string) error {
			return publishSlide(ctx, uid, index)
		})
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Moves the audience one slide forward.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSlideCommand(func(ctx context.Context, uid string) error {
			return stepSlide(ctx, uid, 1)
		})
	},
}

var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Moves the audience one slide back.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSlideCommand(func(ctx context.Context, uid string) error {
			return stepSlide(ctx, uid, -1)
		})
	},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Prints the confirmed slide of the presentation.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runSlideCommand(func(ctx context.Context, uid string) error {
			index, known, err := currentSlide(ctx, uid)
			if err != nil {
				return err
			}
			if !known {
				fmt.Printf("%s: no slide published yet\n", uid)
				return nil
			}
			fmt.Printf("%s: slide %d\n", uid, index)
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <session_id> <slide_index>",
	Short: "Reports an audience position for a participant session.",
	Long: `Sends a position report as an audience member would. The session
must have been registered with the presentation beforehand.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid slide index: %s\n", args[1])
			return
		}
		runSlideCommand(func(ctx context.Context, uid string) error {
			req, err := livepb.NewStruct(map[string]any{
				livepb.FieldPresentationUID: uid,
				livepb.FieldSessionID:       args[0],
				livepb.FieldSlideIndex:      index,
			})
			if err != nil {
				return err
			}
			res, err := liveClient.ReportPosition(callContext(ctx), req)
			if err != nil {
				return err
			}
			fmt.Println(livepb.GetString(res, livepb.FieldOutcome))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(gotoCmd, nextCmd, prevCmd, stateCmd, reportCmd)
}

func runSlideCommand(fn func(ctx context.Context, uid string) error) {
	uid, err := presentationUID()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := fn(ctx, uid); err != nil {
		fmt.Fprintf(os.Stderr, "Error on %s: %v\n", uid, err)
	}
}

func publishSlide(ctx context.Context, uid string, index int) error {
	if err := publishSlideQuiet(ctx, uid, index); err != nil {
		return err
	}
	fmt.Printf("%s: slide %d\n", uid, index)
	return nil
}

func publishSlideQuiet(ctx context.Context, uid string, index int) error {
	req, err := livepb.NewStruct(map[string]any{
		livepb.FieldPresentationUID: uid,
		livepb.FieldSlideIndex:      index,
	})
	if err != nil {
		return err
	}
	_, err = liveClient.PublishSlideChange(callContext(ctx), req)
	return err
}

func currentSlide(ctx context.Context, uid string) (int, bool, error) {
	req, err := livepb.NewStruct(map[string]any{livepb.FieldPresentationUID: uid})
	if err != nil {
		return 0, false, err
	}
	res, err := liveClient.GetSlideState(callContext(ctx), req)
	if err != nil {
		return 0, false, err
	}
	return int(livepb.GetInt(res, livepb.FieldSlideIndex)), livepb.GetBool(res, livepb.FieldKnown), nil
}

// stepSlide moves relative to the confirmed slide; an unknown state counts
// as slide 0.
func stepSlide(ctx context.Context, uid string, delta int) error {
	index, _, err := currentSlide(ctx, uid)
	if err != nil {
		return err
	}
	return publishSlide(ctx, uid, nextIndex(index, delta))
}

func nextIndex(index, delta int) int {
	return max(index+delta, 0)
}
