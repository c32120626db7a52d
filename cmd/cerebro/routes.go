package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"cerebro/internal/manifest"
	"cerebro/internal/routespec"
	"cerebro/internal/routetable"
)

func newRoutesCmd(fv *flagValues) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table derived from the manifest without serving",
		Long: `Routes loads the manifest and override document exactly as serve would and
prints the resulting route table. Models that could not be turned into a route
are listed after the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			fs := afero.NewOsFs()
			store := manifest.New(manifest.Config{
				URL:          cfg.ManifestURL(),
				Path:         cfg.Manifest.Path,
				FetchTimeout: cfg.FetchTimeout(),
				Fs:           fs,
				Logger:       log,
			})
			if _, err := store.Load(cmd.Context(), manifest.LoadOptions{AllowFallback: true}); err != nil {
				return fmt.Errorf("load manifest: %s", manifest.Detail(err))
			}
			ov, err := routespec.LoadOverrides(fs, cfg.Manifest.OverridesPath)
			if err != nil {
				return err
			}
			specs, skipped := routetable.Derive(store.Snapshot(), ov, routespec.Builder{DefaultTier: cfg.Auth.DefaultTier}, log)
			t := routetable.New(1, store.Hash(), specs)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(routeRows(t))
			}
			fmt.Fprintln(out, renderRoutes(t, cfg.APIPrefix))
			for _, s := range skipped {
				fmt.Fprintf(out, "skipped %s: %v\n", s.Model, s.Err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print routes as JSON")
	return cmd
}

func routeRows(t *routetable.Table) []map[string]any {
	rows := make([]map[string]any, 0, t.Len())
	for _, r := range t.Routes() {
		rows = append(rows, map[string]any{
			"path":     r.Path,
			"model":    r.Model,
			"table":    r.Table,
			"tier":     r.Tier,
			"params":   paramNames(r.Params),
			"order_by": r.OrderBy,
		})
	}
	return rows
}

func paramNames(ps []routespec.Param) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

// renderRoutes formats t as a text table.
func renderRoutes(t *routetable.Table, prefix string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Path", "Model", "Table", "Tier", "Params", "Order By"})
	prefix = strings.TrimRight(prefix, "/")
	for _, r := range t.Routes() {
		tw.AppendRow(table.Row{prefix + r.Path, r.Model, r.Table, r.Tier, strings.Join(paramNames(r.Params), ", "), r.OrderBy})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "routes", t.Len()})
	return tw.Render()
}
