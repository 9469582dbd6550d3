package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"campuscal/internal/calendar"
	"campuscal/internal/config"
	"campuscal/internal/datetext"
	"campuscal/internal/export"
	appLog "campuscal/internal/log"
	"campuscal/internal/metrics"
	"campuscal/internal/phrase"
	"campuscal/internal/query"
	"campuscal/internal/scrape"
	"campuscal/internal/web"
)

// app holds flag values and the config loaded before any subcommand runs.
type app struct {
	configPath string
	listen     string
	clean      bool
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "campuscal",
		Short:         "Academic calendar lookup",
		Long:          "Scrapes a university's published academic calendar and answers when, on, until and upcoming questions about it.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "/etc/campuscal/config.yaml", "Path to config file")
	root.PersistentFlags().BoolVar(&a.clean, "clean", false, "Strip \"Day N\" and \"(N)\" decorations from event names")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled refreshes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	serve.Flags().StringVar(&a.listen, "listen", "", "HTTP listen address (overrides config if set)")

	var past bool
	when := &cobra.Command{
		Use:   "when <event>",
		Short: "Show when an event happens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			tense := query.NotPast
			if past {
				tense = query.Past
			}
			matches := engine.LookupByName(args[0], tense, a.clean)
			fmt.Fprintln(cmd.OutOrStdout(), phrase.When(args[0], tense, matches))
			return nil
		},
	}
	when.Flags().BoolVar(&past, "past", false, "Include events that already happened")

	on := &cobra.Command{
		Use:   "on <YYYY-MM-DD>",
		Short: "List the events on a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := time.ParseInLocation(time.DateOnly, args[0], a.cfg.Location())
			if err != nil {
				return fmt.Errorf("date %q must be YYYY-MM-DD", args[0])
			}
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			names, found := engine.LookupByDate(day, a.clean)
			fmt.Fprintln(cmd.OutOrStdout(), phrase.On(day, names, found))
			return nil
		},
	}

	until := &cobra.Command{
		Use:   "until <event>",
		Short: "Count the days until an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			cd, found := engine.DaysUntil(args[0], a.clean)
			fmt.Fprintln(cmd.OutOrStdout(), phrase.Until(args[0], cd, found))
			return nil
		},
	}

	upcoming := &cobra.Command{
		Use:   "upcoming <days>",
		Short: "List events in the next N days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[0])
			if err != nil || days < 1 || days > a.cfg.MaxWindowDays {
				return errors.New(phrase.WindowOutOfRange(a.cfg.MaxWindowDays))
			}
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			events, err := engine.EventsInWindow(days, a.clean)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), phrase.Upcoming(days, events))
			return nil
		},
	}

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the calendar as an iCalendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			body := export.ICS(engine.Index(), a.cfg.Location(), export.DefaultProdID)
			if outPath == "" || outPath == "-" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if err := os.WriteFile(outPath, []byte(body), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			appLog.Info("calendar exported", "path", outPath, "events", engine.Index().Len())
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default stdout)")

	root.AddCommand(serve, when, on, until, upcoming, exportCmd)
	return root
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", a.configPath)
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	a.cfg = cfg
	return nil
}

// newService wires the fetcher, parser and engine settings from config.
func (a *app) newService() (*calendar.Service, error) {
	policy, err := datetext.ParseTimeRangePolicy(a.cfg.TimeRangePolicy)
	if err != nil {
		return nil, err
	}
	loc := a.cfg.Location()

	return calendar.New(
		scrape.NewFetcher(a.cfg.CacheDir, a.cfg.FetchTimeout()),
		calendar.Options{
			URL: a.cfg.SourceURL,
			Selectors: scrape.Selectors{
				Event: a.cfg.EventSelector,
				Date:  a.cfg.DateSelector,
			},
			Parser: &datetext.Parser{Location: loc, TimeRange: policy},
			EngineOptions: []query.Option{
				query.WithLocation(loc),
				query.WithLimit(a.cfg.TopK),
				query.WithThreshold(a.cfg.SimilarityThreshold),
			},
		},
	), nil
}

// engine builds the index once for a one-shot query command.
func (a *app) engine(ctx context.Context) (*query.Engine, error) {
	svc, err := a.newService()
	if err != nil {
		return nil, err
	}
	if err := svc.Refresh(ctx); err != nil {
		return nil, err
	}
	return svc.Engine()
}

func (a *app) serve(ctx context.Context) error {
	if a.listen != "" {
		a.cfg.Listen = a.listen
	}

	appLog.Info("campuscal starting",
		"version", version,
		"listen", a.cfg.Listen,
		"timezone", a.cfg.Timezone,
		"source_url", a.cfg.SourceURL,
		"refresh", a.cfg.RefreshCron,
		"time_range_policy", a.cfg.TimeRangePolicy,
	)

	metrics.Init()

	svc, err := a.newService()
	if err != nil {
		return err
	}

	// The API answers 503 until a refresh succeeds, so a failed first fetch
	// is not fatal; the schedule keeps retrying.
	if err := svc.Refresh(ctx); err != nil {
		appLog.Error("initial calendar refresh failed", err)
	}
	if err := svc.Start(ctx, a.cfg.RefreshCron); err != nil {
		return err
	}

	err = web.StartServer(ctx, a.cfg, svc)
	appLog.Info("campuscal exiting")
	return err
}
