package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chairtools/chairstat/internal/config"
	"github.com/chairtools/chairstat/internal/openreview"
	"github.com/chairtools/chairstat/internal/report"
	"github.com/chairtools/chairstat/internal/snapshot"
	"github.com/chairtools/chairstat/internal/style"
	"github.com/chairtools/chairstat/internal/venue"
)

const (
	usernamePrompt = "Enter OpenReview username: "
	passwordPrompt = "Enter password: "
	venuePrompt    = "Enter venue, e.g., aclweb.org/ACL/ARR/2023/December : "
)

// prompter asks for missing settings on the command's input.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	return &prompter{in: in, reader: bufio.NewReader(in), out: cmd.ErrOrStderr()}
}

func (p *prompter) ask(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read answer to %q: %w", strings.TrimSpace(prompt), err)
	}
	return strings.TrimSpace(line), nil
}

// secret reads without echo when the input is a terminal.
func (p *prompter) secret(prompt string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return p.ask(prompt)
}

// session is the resolved configuration and platform access of one command.
type session struct {
	app *app
	cmd *cobra.Command
	cfg *config.Config
}

// newSession loads the configuration. Unless a saved snapshot is read,
// missing credentials and venue are prompted for in the original order:
// username, password, venue.
func (a *app) newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, err
	}

	if a.snapshotIn == "" {
		p := newPrompter(cmd)
		if cfg.Token == "" {
			if cfg.Username == "" {
				if cfg.Username, err = p.ask(usernamePrompt); err != nil {
					return nil, err
				}
			}
			if cfg.Password == "" {
				if cfg.Password, err = p.secret(passwordPrompt); err != nil {
					return nil, err
				}
			}
		}
		if cfg.Venue == "" {
			answer, err := p.ask(venuePrompt)
			if err != nil {
				return nil, err
			}
			cfg.Venue = strings.Trim(answer, "/")
		}
	}

	if err := cfg.Validate(a.snapshotIn == ""); err != nil {
		return nil, err
	}

	return &session{app: a, cmd: cmd, cfg: cfg}, nil
}

// client builds the platform client from the configuration.
func (s *session) client() *openreview.Client {
	httpClient := &http.Client{Timeout: s.cfg.API.Timeout}

	var auth openreview.AuthProvider
	if s.cfg.Token != "" {
		auth = openreview.NewTokenAuth(s.cfg.Token)
	} else {
		auth = openreview.NewPasswordAuth(s.cfg.BaseURL, openreview.Credentials{
			Username: s.cfg.Username,
			Password: s.cfg.Password,
		}, httpClient)
	}

	retry := s.cfg.API.Retry
	return openreview.NewClient(s.cfg.BaseURL, auth,
		openreview.WithHTTPClient(httpClient),
		openreview.WithRateLimit(s.cfg.API.RequestsPerSecond),
		openreview.WithRetry(&retry),
		openreview.WithPageSize(s.cfg.API.PageSize),
	)
}

// snapshot returns the data for kind: read from --snapshot, served from the
// cache, or fetched. A fetched snapshot is written to --save-snapshot.
func (s *session) snapshot(ctx context.Context, kind venue.Kind, variant []string, fetch func(context.Context, *venue.Fetcher) (*venue.Snapshot, error)) (*venue.Snapshot, error) {
	a := s.app

	if a.snapshotIn != "" {
		snap, err := snapshot.Load(a.snapshotIn)
		if err != nil {
			return nil, err
		}
		if err := snapshot.Expect(snap, kind); err != nil {
			return nil, err
		}
		log.Debug().Str("file", a.snapshotIn).Str("venue", snap.Venue).Msg("Using saved snapshot")
		if s.cfg.Venue != "" && s.cfg.Venue != snap.Venue && a.textOutput() {
			style.Warning(s.cmd.ErrOrStderr(), fmt.Sprintf("Snapshot %s was fetched for %s, not %s", a.snapshotIn, snap.Venue, s.cfg.Venue))
		}
		return snap, nil
	}

	spin := a.spinner(s.cmd)
	fetcher := venue.NewFetcher(s.client(), s.cfg.VenueModel())
	fetcher.OnStage = func(stage string) { spin.SetSuffix(" " + stage) }

	disabled := a.noCache || !s.cfg.Cache.Enabled
	cache := snapshot.NewCache(s.cfg.Cache.Dir, s.cfg.Cache.TTL, disabled)
	key := snapshot.Key(s.cfg.Venue, kind, variant...)

	spin.Start()
	snap, err := cache.Get(ctx, key, func(ctx context.Context) (*venue.Snapshot, error) {
		return fetch(ctx, fetcher)
	})
	spin.Stop()
	if err != nil {
		return nil, err
	}

	if a.snapshotOut != "" {
		if err := snapshot.Save(a.snapshotOut, snap); err != nil {
			return nil, err
		}
		if a.textOutput() {
			report.Saved(s.cmd.ErrOrStderr(), "snapshot", a.snapshotOut)
		}
	}

	return snap, nil
}
