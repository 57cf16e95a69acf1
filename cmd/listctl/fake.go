package main

import (
	"context"

	"github.com/spf13/cobra"
)

var fakeListenAddr string

var fakeCmd = &cobra.Command{
	Use:   "fake",
	Short: "Local fake API commands",
}

var fakeServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local fake of the list API",
	Long: `Run a local server that answers the segment endpoints of the list API.

Lists and segments seeded from the fake section of the config file are
stored in BoltDB. Point api.base_url at the server to try the segment
commands offline.`,
	RunE: runFakeServe,
}

func init() {
	fakeServeCmd.Flags().StringVar(&fakeListenAddr, "listen", "", "listen address (default: fake.listen_addr)")

	fakeCmd.AddCommand(fakeServeCmd)
	rootCmd.AddCommand(fakeCmd)
}

func runFakeServe(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	if cmd.Flags().Changed("listen") {
		application.Config().Fake.ListenAddr = fakeListenAddr
	}

	return application.RunFake(context.Background())
}
