package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"logsite/internal/ipc"
	"logsite/internal/logparse"
	"logsite/internal/services"
	"logsite/internal/sites"
)

func newSitesCommand(ctx *commandContext) *cobra.Command {
	sitesCmd := &cobra.Command{
		Use:   "sites",
		Short: "Manage configured sites",
	}
	sitesCmd.AddCommand(newSitesListCommand(ctx))
	sitesCmd.AddCommand(newSitesShowCommand(ctx))
	sitesCmd.AddCommand(newSitesAddCommand(ctx))
	sitesCmd.AddCommand(newSitesRemoveCommand(ctx))
	return sitesCmd
}

func newSitesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				reg := sites.NewRegistry(client)
				if _, err := reg.Refresh(cmd.Context()); err != nil {
					return err
				}
				entries := reg.Entries()
				if asJSON {
					configs := make([]sites.SiteConfig, 0, len(entries))
					for _, entry := range entries {
						configs = append(configs, redact(entry.Snapshot.Config))
					}
					return writeJSON(cmd, configs)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No sites configured (add one with `logsite sites add`)")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					cfg := entry.Snapshot.Config
					rows = append(rows, []string{
						entry.Snapshot.Name,
						cfg.Address,
						cfg.Credentials.Username,
						strconv.Itoa(len(cfg.Transforms)),
					})
				}
				fmt.Fprint(out, renderTable([]string{"Site", "Address", "User", "Rules"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sites as JSON")
	return cmd
}

func newSitesShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <site>",
		Short: "Show one site configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				cfg, err := client.GetSiteConfig(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd, redact(cfg))
			})
		},
	}
}

func newSitesAddCommand(ctx *commandContext) *cobra.Command {
	var (
		address        string
		username       string
		password       string
		transformsFile string
	)
	cmd := &cobra.Command{
		Use:   "add <site>",
		Short: "Create or update a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sites.SiteConfig{
				Name:        strings.TrimSpace(args[0]),
				Address:     strings.TrimSpace(address),
				Credentials: sites.Credentials{Username: username, Password: password},
			}
			if transformsFile != "" {
				rules, err := readTransforms(transformsFile)
				if err != nil {
					return err
				}
				cfg.Transforms = rules
			}
			if err := logparse.ValidateRules(cfg.Transforms); err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if err := client.SaveSiteConfig(cmd.Context(), cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved site %s (%s)\n", cfg.Name, cfg.Address)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Host or host:port of the site's FTP server")
	cmd.Flags().StringVar(&username, "user", "", "FTP user name")
	cmd.Flags().StringVar(&password, "password", "", "FTP password")
	cmd.Flags().StringVar(&transformsFile, "transforms", "", "JSON file holding an array of transform rules")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newSitesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <site>",
		Aliases: []string{"rm"},
		Short:   "Delete a site with its cached listing and downloaded logs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.GetSiteConfig(cmd.Context(), name); err != nil {
					return err
				}
				if err := client.DeleteSiteConfig(cmd.Context(), name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed site %s\n", name)
				return nil
			})
		},
	}
}

func readTransforms(path string) ([]sites.TransformRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transforms: %w", err)
	}
	var rules []sites.TransformRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, services.Wrap(services.ErrValidation, "cli", "read transforms", path, err)
	}
	return rules, nil
}

func redact(cfg sites.SiteConfig) sites.SiteConfig {
	if cfg.Credentials.Password != "" {
		cfg.Credentials.Password = "********"
	}
	return cfg
}
