package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"logsite/internal/config"
	"logsite/internal/fetch"
	"logsite/internal/follow"
	"logsite/internal/ipc"
	"logsite/internal/linefilter"
	"logsite/internal/logging"
	"logsite/internal/logwindow"
	"logsite/internal/refresh"
	"logsite/internal/services"
	"logsite/internal/sites"
	"logsite/internal/tui"
)

// engine is the in-process client side: registry and coordinator over IPC.
type engine struct {
	reg   *sites.Registry
	coord *fetch.Coordinator
}

func newEngine(ctx context.Context, client *ipc.Client, logger *slog.Logger) (*engine, error) {
	reg := sites.NewRegistry(client, sites.WithLogger(logger))
	if _, err := reg.Refresh(ctx); err != nil {
		return nil, err
	}
	return &engine{reg: reg, coord: fetch.New(reg, fetch.WithLogger(logger))}, nil
}

// listing runs one listing refresh for site and waits for it.
func (e *engine) listing(ctx context.Context, site string) (sites.SiteSnapshot, error) {
	if _, ok := e.reg.Entry(site); !ok {
		return sites.SiteSnapshot{}, services.Wrap(services.ErrNotFound, "cli", "listing", fmt.Sprintf("site %q", site), nil)
	}
	if _, err := e.coord.FetchListing(ctx, site); err != nil {
		return sites.SiteSnapshot{}, err
	}
	return e.coord.AwaitListing(ctx, site)
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	var local, asJSON bool
	cmd := &cobra.Command{
		Use:   "files <site>",
		Short: "List the log files of a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				var snapshot sites.SiteSnapshot
				if local {
					cfg, err := client.GetSiteConfig(cmd.Context(), site)
					if err != nil {
						return err
					}
					if snapshot, err = client.FetchLocalListing(cmd.Context(), cfg); err != nil {
						return err
					}
				} else {
					eng, err := newEngine(cmd.Context(), client, nil)
					if err != nil {
						return err
					}
					if snapshot, err = eng.listing(cmd.Context(), site); err != nil {
						return err
					}
				}
				if asJSON {
					return writeJSON(cmd, snapshot)
				}
				return printListing(cmd, snapshot)
			})
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Show the last cached listing without contacting the site")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")
	return cmd
}

func printListing(cmd *cobra.Command, snapshot sites.SiteSnapshot) error {
	out := cmd.OutOrStdout()
	if snapshot.HasError() {
		kind := statusWarn
		if len(snapshot.Entries) == 0 {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine("Listing", kind, snapshot.Error, shouldColorize(out)))
	}
	if len(snapshot.Entries) == 0 {
		fmt.Fprintf(out, "No log files for %s\n", snapshot.Name)
		return nil
	}
	rows := make([][]string, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		rows = append(rows, []string{entry.Name, formatSize(entry.Size), formatAge(entry.ModifiedAt)})
	}
	fmt.Fprint(out, renderTable([]string{"File", "Size", "Modified"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
	return nil
}

type viewOptions struct {
	local   bool
	all     bool
	asJSON  bool
	include string
	exclude string
}

func newViewCommand(ctx *commandContext) *cobra.Command {
	var opts viewOptions
	cmd := &cobra.Command{
		Use:   "view <site> <file>",
		Short: "Print the parsed content of a log file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, file := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			cfg := ctx.configValue()
			return ctx.withClient(func(client *ipc.Client) error {
				eng, err := newEngine(cmd.Context(), client, nil)
				if err != nil {
					return err
				}
				var log sites.Log
				if opts.local {
					log, _, err = eng.coord.FetchLocalFallback(cmd.Context(), site, file)
				} else {
					var snapshot sites.SiteSnapshot
					snapshot, err = eng.listing(cmd.Context(), site)
					if err == nil && snapshot.HasError() {
						fmt.Fprintln(cmd.ErrOrStderr(), "warn: listing failed: "+snapshot.Error)
					}
					if err == nil {
						log, err = eng.coord.FetchContent(cmd.Context(), site, file)
					}
				}
				if err != nil {
					return err
				}
				view := windowView(cfg, site, file, log, opts)
				if opts.asJSON {
					return writeJSON(cmd, view.Lines)
				}
				out := cmd.OutOrStdout()
				styles := tui.PlainStyles()
				if shouldColorize(out) {
					styles = tui.DefaultStyles()
				}
				if len(view.Lines) > 0 || view.HasMore {
					fmt.Fprintln(out, tui.RenderLines(view, styles))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.local, "local", false, "Read the downloaded copy without contacting the site")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Show every line instead of the most recent window")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print parsed lines as JSON")
	cmd.Flags().StringVar(&opts.include, "include", "", "Space separated tokens; keep lines matching all")
	cmd.Flags().StringVar(&opts.exclude, "exclude", "", "Space separated tokens; drop lines matching any")
	return cmd
}

func windowView(cfg *config.Config, site, file string, log sites.Log, opts viewOptions) follow.View {
	maxLines, increment := logwindow.MaxWindow, logwindow.MoreIncrement
	if cfg != nil {
		maxLines, increment = cfg.View.MaxWindow, cfg.View.MoreIncrement
	}
	window := logwindow.New(maxLines, increment)
	window.Update(log)
	for opts.all && window.HasMore() {
		window.ShowMore()
	}
	filters := linefilter.NewSet(opts.include, opts.exclude)
	return follow.View{
		Site:    site,
		File:    file,
		Lines:   filters.Apply(window.Lines()),
		Total:   log.Len(),
		Hidden:  window.Hidden(),
		Cursor:  window.Cursor(),
		HasMore: window.HasMore(),
		Filters: filters,
	}
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var include, exclude string
	cmd := &cobra.Command{
		Use:   "watch <site> <file>",
		Short: "Follow a log file in an interactive view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, file := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				logger := slog.New(logging.NewForwardHandler(client.EmitLog, slog.LevelWarn))
				eng, err := newEngine(cmd.Context(), client, logger)
				if err != nil {
					return err
				}
				if _, ok := eng.reg.Entry(site); !ok {
					return services.Wrap(services.ErrNotFound, "cli", "watch", fmt.Sprintf("site %q", site), nil)
				}

				sched := refresh.New(eng.coord,
					refresh.WithTick(cfg.Refresh.Tick()),
					refresh.WithCadence(sites.Cadence{Normal: cfg.Refresh.NormalCycle(), Error: cfg.Refresh.ErrorCycle()}),
					refresh.WithLogger(logger),
				)
				if err := sched.Start(cmd.Context()); err != nil {
					return err
				}
				defer sched.Stop()

				follower := follow.New(eng.coord, site, file,
					follow.WithPolling(cfg.Refresh.ContentPoll(), cfg.Refresh.ContentCycle()),
					follow.WithWindow(cfg.View.MaxWindow, cfg.View.MoreIncrement),
					follow.WithLogger(logger),
				)
				if include != "" || exclude != "" {
					follower.SetFilters(include, exclude)
				}
				return tui.Run(cmd.Context(), follower, tui.Options{
					Settle:    cfg.View.Settle(),
					Tolerance: cfg.View.BottomTolerance,
					AltScreen: true,
				})
			})
		},
	}
	cmd.Flags().StringVar(&include, "include", "", "Initial include filter")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Initial exclude filter")
	return cmd
}
