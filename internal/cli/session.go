package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"cthulhu-news/internal/client"
	"cthulhu-news/internal/config"
	"cthulhu-news/internal/dedup"
	"cthulhu-news/internal/page"
	"cthulhu-news/internal/storage"
)

// session is one newsctl run: the server client, the visitor profile and
// the counters of guarded actions.
type session struct {
	opts     *RootOptions
	out      *OutputFormatter
	client   *client.Client
	store    storage.Store
	registry *prometheus.Registry
	metrics  *dedup.Metrics
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg := opts.Config
	s := &session{
		opts:     opts,
		out:      opts.formatter(cmd),
		client:   client.New(cfg.Client.BaseURL, cfg.Client.Timeout, opts.Logger),
		registry: prometheus.NewRegistry(),
	}
	s.metrics = dedup.NewMetrics(s.registry)

	if cfg.Profile.Driver == config.ProfileRemote {
		token, err := s.visitorToken(ctx, cfg.Profile)
		if err != nil {
			return nil, err
		}
		s.store = s.client.ProfileStorage(token)
		return s, nil
	}

	store, err := storage.Open(ctx, cfg.Profile, opts.Logger)
	if err != nil {
		return nil, exitErrorf(ExitCommandError, "open profile: %w", err)
	}
	s.store = store
	return s, nil
}

// visitorToken returns the token of the remote profile. Without a configured
// token the one saved at TokenPath is reused; a new visitor is registered
// only when neither exists, and its token is saved before any action runs.
func (s *session) visitorToken(ctx context.Context, profile config.ProfileConfig) (string, error) {
	if profile.Token != "" {
		return profile.Token, nil
	}
	if profile.TokenPath == "" {
		return "", exitErrorf(ExitCommandError, "remote profile needs profile.token or profile.token_path")
	}

	data, err := os.ReadFile(profile.TokenPath)
	switch {
	case err == nil:
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return "", exitErrorf(ExitCommandError, "read visitor token: %w", err)
	}

	visitor, err := s.client.RegisterVisitor(ctx, "")
	if err != nil {
		return "", exitErrorf(ExitCommandError, "register visitor: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(profile.TokenPath), 0o755); err != nil {
		return "", exitErrorf(ExitCommandError, "save visitor token: %w", err)
	}
	if err := os.WriteFile(profile.TokenPath, []byte(visitor.Token+"\n"), 0o600); err != nil {
		return "", exitErrorf(ExitCommandError, "save visitor token: %w", err)
	}
	s.out.VerboseLog("registered visitor %s, token saved to %s", visitor.VisitorID, profile.TokenPath)
	return visitor.Token, nil
}

func (s *session) Close() error {
	s.reportMetrics()
	return s.store.Close()
}

func (s *session) loadPage(ctx context.Context, path string) (*page.Document, error) {
	html, err := s.client.FetchPage(ctx, path)
	if err != nil {
		return nil, exitErrorf(ExitCommandError, "fetch %s: %w", path, err)
	}
	return page.ParseString(html)
}

// deduplicator builds a guard over the session profile. The effect factory
// receives the visitor id once the profile is initialized.
func (s *session) deduplicator(opts dedup.Options, surface dedup.Surface, effect func(userID string) dedup.Effect) *dedup.Deduplicator {
	opts.Logger = s.opts.Logger
	opts.Metrics = s.metrics
	var d *dedup.Deduplicator
	var guarded dedup.Effect
	if effect != nil {
		guarded = func(ctx context.Context, action, key string) (string, error) {
			return effect(d.UserID())(ctx, action, key)
		}
	}
	d = dedup.New(s.store, guarded, surface, opts)
	return d
}

func (s *session) reportMetrics() {
	if !s.out.Verbose {
		return
	}
	families, err := s.registry.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			label := ""
			for _, l := range m.GetLabel() {
				label += fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
			}
			s.out.VerboseLog("%s{%s} %g", mf.GetName(), label, m.GetCounter().GetValue())
		}
	}
}
