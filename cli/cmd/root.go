/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-shellwords"
	"github.com/ponyo877/livedeck/livepb"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

var (
	cfgFile    string
	liveClient livepb.LiveServiceClient
	grpcConn   *grpc.ClientConn
)

const (
	grpcServerAddressKey = "grpc_server_address"
	identityTokenKey     = "identity_token"
	presenterTokenKey    = "presenter_token"
	presentationUIDKey   = "presentation_uid"
	presentationIDKey    = "presentation_id"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "livedeck",
	Short: "Presenter console for a livedeck server",
	Long: `livedeck drives a live presentation over gRPC.

Log in as presenter of a deck once, then move slides, follow the
broadcast channel or open the live audience panel. Started without
arguments it enters an interactive shell.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if grpcConn != nil {
			return nil
		}
		conn, err := grpc.NewClient(viper.GetString(grpcServerAddressKey), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("did not connect to gRPC server: %w", err)
		}
		grpcConn = conn
		liveClient = livepb.NewLiveServiceClient(conn)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer closeConn()

	// one-shot
	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			closeConn()
			os.Exit(1)
		}
		return
	}

	// REPL
	fmt.Println("entering interactive mode, type 'exit' to quit")
	for {
		line := strings.TrimSpace(prompt.Input("❯❯❯ ", completer,
			prompt.OptionTitle("livedeck"),
			prompt.OptionPrefixTextColor(prompt.Cyan),
		))
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error parsing input:", err)
			continue
		}
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			// cobra already printed the error
			continue
		}
	}
}

func completer(d prompt.Document) []prompt.Suggest {
	if strings.Contains(d.TextBeforeCursor(), " ") {
		return nil
	}
	suggests := []prompt.Suggest{{Text: "exit", Description: "Leave the interactive shell"}}
	for _, c := range rootCmd.Commands() {
		if c.Hidden || c.Name() == "completion" {
			continue
		}
		suggests = append(suggests, prompt.Suggest{Text: c.Name(), Description: c.Short})
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}

func closeConn() {
	if grpcConn != nil {
		grpcConn.Close()
		grpcConn = nil
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.livedeck.yaml)")
	rootCmd.PersistentFlags().String("grpc-server", "localhost:50051", "Address of the livedeck gRPC server")
	rootCmd.PersistentFlags().String("identity-token", "", "Identity token issued by the host application")
	rootCmd.PersistentFlags().StringP("presentation", "P", "", "Presentation UID (defaults to the last login)")

	viper.BindPFlag(grpcServerAddressKey, rootCmd.PersistentFlags().Lookup("grpc-server"))
	viper.BindPFlag(identityTokenKey, rootCmd.PersistentFlags().Lookup("identity-token"))
	viper.BindPFlag(presentationUIDKey, rootCmd.PersistentFlags().Lookup("presentation"))
	viper.SetDefault(grpcServerAddressKey, "localhost:50051")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".livedeck")
	}

	viper.SetEnvPrefix("livedeck")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// saveConfig persists the current settings, creating the config file on
// first use.
func saveConfig() error {
	err := viper.WriteConfig()
	if err == nil {
		return nil
	}
	if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return err
	}
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, ".livedeck.yaml")
	}
	return viper.WriteConfigAs(path)
}

// callContext attaches the stored credentials as outgoing metadata.
func callContext(ctx context.Context) context.Context {
	var pairs []string
	if token := viper.GetString(identityTokenKey); token != "" {
		pairs = append(pairs, livepb.MetadataAuthorization, "Bearer "+token)
	}
	if token := viper.GetString(presenterTokenKey); token != "" {
		pairs = append(pairs, livepb.MetadataPresenterToken, token)
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func presentationUID() (string, error) {
	if uid := viper.GetString(presentationUIDKey); uid != "" {
		return uid, nil
	}
	return "", errors.New("no presentation given; pass --presentation or run login first")
}
