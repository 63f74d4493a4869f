package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"logsite/internal/ipc"
	"logsite/internal/logging"
	"logsite/internal/logstream"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		opts   logstream.Options
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent daemon log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				printed, err := logstream.Stream(cmd.Context(), client, opts, func(evt logging.LogEvent) {
					if asJSON {
						_ = writeJSON(cmd, evt)
						return
					}
					printEvent(out, evt, colorize)
				})
				if err != nil {
					return err
				}
				if !printed && !opts.Follow && !asJSON {
					fmt.Fprintln(out, "No events")
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", 50, "Number of recent events to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().StringVar(&opts.Filters.Component, "component", "", "Only events from this component")
	cmd.Flags().StringVar(&opts.Filters.Site, "site", "", "Only events about this site")
	cmd.Flags().StringVar(&opts.Filters.CorrelationID, "request", "", "Only events with this correlation id")
	cmd.Flags().StringVar(&opts.Filters.Level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.Filters.Search, "search", "", "Case-insensitive message substring")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print events as JSON")
	return cmd
}

func printEvent(out io.Writer, evt logging.LogEvent, colorize bool) {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%-5s", strings.ToUpper(evt.Level)))
	if evt.Component != "" {
		b.WriteString(" [" + evt.Component + "]")
	}
	if evt.Site != "" {
		b.WriteString(" " + evt.Site)
		if evt.File != "" {
			b.WriteString("/" + evt.File)
		}
	}
	b.WriteString(" " + evt.Message)
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" " + k + "=" + evt.Fields[k])
	}
	line := b.String()
	if colorize {
		switch logging.ParseLevel(evt.Level).String() {
		case "ERROR":
			line = ansiRed + line + ansiReset
		case "WARN":
			line = ansiYellow + line + ansiReset
		}
	}
	fmt.Fprintln(out, line)
}
