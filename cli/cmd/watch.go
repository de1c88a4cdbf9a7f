/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ponyo877/livedeck/livepb"
	"github.com/ponyo877/livedeck/server/domain"
	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch [channel]",
	Short: "Follows the broadcasts of a channel.",
	Long: `Subscribes to a channel and prints every message until interrupted.
Without a channel the public channel of the current presentation is used.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var channel string
		if len(args) == 1 {
			channel = args[0]
		} else {
			uid, err := presentationUID()
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return
			}
			channel = domain.NewPresentationChannel(uid).Name()
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		req, err := livepb.NewStruct(map[string]any{livepb.FieldChannel: channel})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error building request:", err)
			return
		}
		stream, err := liveClient.Subscribe(callContext(ctx), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error subscribing to %s: %v\n", channel, err)
			return
		}
		fmt.Fprintf(os.Stderr, "watching %s (Ctrl+C to stop)\n", channel)

		for {
			msg, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					break
				}
				fmt.Fprintf(os.Stderr, "Error receiving from %s: %v\n", channel, err)
				break
			}
			fmt.Println(formatMessage(msg))
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func formatMessage(msg *structpb.Struct) string {
	at := livepb.GetString(msg, livepb.FieldPublishedAt)
	if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
		at = t.Local().Format("15:04:05")
	}
	data := "null"
	if v, ok := msg.GetFields()[livepb.FieldData]; ok {
		if b, err := protojson.Marshal(v); err == nil {
			data = string(b)
		}
	}
	return fmt.Sprintf("[%s] %s %s %s", at,
		livepb.GetString(msg, livepb.FieldEvent),
		livepb.GetString(msg, livepb.FieldChannel),
		data,
	)
}
