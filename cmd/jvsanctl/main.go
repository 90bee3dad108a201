package main

import (
	"os"
	"time"

	_ "github.com/jimmicro/version"
	"github.com/jimyag/jvsan/internal/jvsan/client"
	"github.com/spf13/cobra"
)

var (
	server     string
	timeout    time.Duration
	jsonOutput bool
)

var root = &cobra.Command{
	Use:   "jvsanctl",
	Short: "Command line client for the jvsan storage provisioner",
}

func newClient() *client.Client {
	return client.New(server, timeout)
}

func defaultServer() string {
	if s := os.Getenv("JVSAN_SERVER"); s != "" {
		return s
	}
	return "http://127.0.0.1:7788"
}

func init() {
	root.PersistentFlags().StringVar(&server, "server", defaultServer(), "Address of the jvsan API")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout, 0 waits until the server responds")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	root.AddCommand(plan, create, list, inspect, peers, deployment)
}

func main() {
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
