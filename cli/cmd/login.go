/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ponyo877/livedeck/livepb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <presentation_uid>",
	Short: "Authorizes as presenter of a presentation.",
	Long: `Exchanges the presenter password (or deck ownership proven by the
identity token) for a presenter token. The token is merged with earlier
ones, so one login per deck is enough, and it is saved to the config file
together with the presentation as the default target of later commands.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		uid := args[0]
		password, _ := cmd.Flags().GetString("password")

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()

		req, err := livepb.NewStruct(map[string]any{
			livepb.FieldPresentationUID: uid,
			livepb.FieldPassword:        password,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error building request:", err)
			return
		}
		res, err := liveClient.AuthorizePresenter(callContext(ctx), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error authorizing presenter of %s: %v\n", uid, err)
			return
		}

		viper.Set(presenterTokenKey, livepb.GetString(res, livepb.FieldToken))
		viper.Set(presentationUIDKey, uid)
		viper.Set(presentationIDKey, livepb.GetInt(res, livepb.FieldPresentationID))
		if err := saveConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Error writing config file:", err)
		}
		fmt.Printf("presenting %s (id %d)\n", uid, livepb.GetInt(res, livepb.FieldPresentationID))
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringP("password", "p", "", "Presenter password of the deck")
}
