package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rubywatch/release-index/internal/feed"
	"github.com/rubywatch/release-index/internal/release"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "release-index",
		Short:   "Print the latest Ruby release of every minor version line",
		Version: version,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.PersistentFlags().StringP("index-url", "u", feed.DefaultIndexURL, "the release index URL")
	cmd.PersistentFlags().DurationP("timeout", "t", time.Minute, "timeout for fetching the release index")
	cmd.PersistentFlags().SortFlags = false

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func run(log *logrus.Logger, cmd *cobra.Command, _ []string) error {
	indexURL := must(cmd.PersistentFlags().GetString("index-url"))
	timeout := must(cmd.PersistentFlags().GetDuration("timeout"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("fetching release index: %s", indexURL)
	data, err := feed.New(timeout).Fetch(ctx, indexURL)
	if err != nil {
		return err
	}

	releases, err := release.Parse(data)
	if err != nil {
		return err
	}
	report := release.Latest(release.Filter(releases))
	log.Infof("found %d release series", len(report))

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
