package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chairtools/chairstat/internal/metrics"
	"github.com/chairtools/chairstat/internal/stats"
	"github.com/chairtools/chairstat/internal/style"
	"github.com/chairtools/chairstat/internal/venue"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Export capacity and progress as Prometheus metrics",
		Long: `Start an HTTP server that refreshes the capacity and progress reports of a
venue on an interval.

The server provides:
- /metrics with Prometheus gauges
- /health reporting whether the last refresh succeeded
- /api/v1/capacity and /api/v1/progress with the latest reports as JSON`,
		Example: `
  chairstat serve --venue aclweb.org/ACL/ARR/2023/December
  chairstat serve --host 0.0.0.0 --port 9464 --interval 5m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	flags := cmd.Flags()
	flags.String("host", "localhost", "host to bind to")
	flags.Int("port", 9464, "port to listen on")
	flags.Duration("interval", 15*time.Minute, "time between refreshes")

	a.bind("serve.host", flags.Lookup("host"))
	a.bind("serve.port", flags.Lookup("port"))
	a.bind("serve.refresh_interval", flags.Lookup("interval"))

	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	if a.snapshotIn != "" {
		return errors.New("serve always fetches; --snapshot is not supported")
	}

	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	serverConfig := metrics.DefaultConfig()
	serverConfig.Host = s.cfg.Serve.Host
	serverConfig.Port = s.cfg.Serve.Port
	serverConfig.RefreshInterval = s.cfg.Serve.RefreshInterval

	server := metrics.New(serverConfig, s.reportRefresher())

	if a.textOutput() {
		style.Info(cmd.ErrOrStderr(), fmt.Sprintf("Serving metrics for %s on http://%s:%d/metrics", s.cfg.Venue, serverConfig.Host, serverConfig.Port))
	}

	return server.Run(cmd.Context())
}

// reportRefresher returns the refresh func for serve. Every refresh fetches a
// capacity and a progress snapshot through one client, so a password login
// happens once. The cache is bypassed so that every refresh sees current data.
func (s *session) reportRefresher() metrics.RefreshFunc {
	fetcher := venue.NewFetcher(s.client(), s.cfg.VenueModel())
	roles := s.cfg.Roles()

	return func(ctx context.Context) (*metrics.Reports, error) {
		capacity, err := fetcher.FetchCapacity(ctx, roles)
		if err != nil {
			return nil, fmt.Errorf("capacity: %w", err)
		}
		progress, err := fetcher.FetchProgress(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("progress: %w", err)
		}

		progressReport := stats.Progress(progress, stats.ProgressOptions{Required: s.cfg.Progress.RequiredReviews})

		log.Debug().
			Str("venue", s.cfg.Venue).
			Int("flagged", len(progressReport.Flagged)).
			Msg("Reports refreshed")

		return &metrics.Reports{
			Capacity:    stats.CapacityAll(capacity, roles, s.cfg.CapacityPolicy()),
			Progress:    &progressReport,
			RefreshedAt: progress.FetchedAt,
		}, nil
	}
}
