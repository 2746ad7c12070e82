package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rubywatch/release-index/pkg/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var defaultServerURLs = []string{
	"https://release-index.rubywatch.dev",
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "release-index-refresh",
		Short:   "Trigger a release report refresh",
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

	cmd.PersistentFlags().StringArrayP("server-url", "s", defaultServerURLs, "the release index server URL")
	cmd.PersistentFlags().String("admin-access-token", os.Getenv("RELEASE_INDEX_ADMIN_ACCESS_TOKEN"), "admin access token")
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
	log.Infof("starting release-index-refresh (version=%s)", version)
	serverURLs := must(cmd.PersistentFlags().GetStringArray("server-url"))
	if len(serverURLs) == 0 {
		return errors.New("no server URLs provided")
	}
	adminAccessToken := must(cmd.PersistentFlags().GetString("admin-access-token"))
	if adminAccessToken == "" {
		return errors.New("no admin access token provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, url := range serverURLs {
		url = strings.TrimSuffix(url, "/")
		if !strings.HasSuffix(url, "/api/v1") {
			url += "/api/v1"
		}
		log.Infof("refreshing release report: %s", url)
		c := client.New(url)
		err := c.Refresh(ctx, adminAccessToken)
		if err != nil {
			log.Errorf("failed to refresh release report on %s: %v", url, err)
		}
	}

	return nil
}
