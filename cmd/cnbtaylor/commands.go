package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/cnbtaylor/api"
	"github.com/seenimoa/cnbtaylor/internal/app"
	"github.com/seenimoa/cnbtaylor/internal/config"
	"github.com/seenimoa/cnbtaylor/internal/export"
	"github.com/seenimoa/cnbtaylor/internal/provider"
	"github.com/seenimoa/cnbtaylor/internal/providers"
	"github.com/seenimoa/cnbtaylor/internal/taylor"
	"github.com/seenimoa/cnbtaylor/pkg/models"
	"github.com/seenimoa/cnbtaylor/pkg/utils"
)

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		pipe, err := app.NewPipeline(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pipe.Close()

		logger.Info("Starting up, fetching data...")
		if err := pipe.State.Refresh(ctx); err != nil {
			logger.Warn("Running without data, check the connection to the data sources")
		}

		sched, err := pipe.State.Schedule(ctx, cfg.Refresh.Schedule)
		if err != nil {
			return fmt.Errorf("refresh.schedule: %w", err)
		}
		if sched != nil {
			defer sched.Stop()
		}

		api.Version = version
		srv := api.NewServer(cfg, pipe.State, logger)
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

// --- Export Command ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Fetch fresh data and write data.json and params.json",
	Long: `Fetch every series from its sources, bypassing the cache, and write the
static frontend files data.json and params.json. With --xlsx the panel and
parameters are also saved as an Excel workbook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")
		xlsx, _ := cmd.Flags().GetString("xlsx")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		pipe, err := app.NewPipeline(ctx, cfg, logger, app.WithoutCache())
		if err != nil {
			return err
		}
		defer pipe.Close()

		if err := pipe.State.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to fetch data: %w", err)
		}
		p, _ := pipe.State.Panel()
		params, _, _ := pipe.State.Params()

		first, _ := p.First()
		last, _ := p.Last()
		fmt.Printf("Loaded %d months (%s – %s)\n", p.Len(), utils.FormatMonth(first), utils.FormatMonth(last))

		if err := export.WriteJSON(outDir, p, params, time.Now()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s and %s\n", filepath.Join(outDir, export.DataFile), filepath.Join(outDir, export.ParamsFile))

		if xlsx != "" {
			if err := export.WriteWorkbook(xlsx, p, params); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", xlsx)
		}
		fmt.Printf("Parameters: ρ=%.3f  r*=%.3f  α=%.3f  β=%.3f\n", params.Rho, params.RStar, params.Alpha, params.Beta)
		return nil
	},
}

// --- Calibrate Command ---

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fetch data (using the cache) and print the calibrated parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipe, err := app.NewPipeline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer pipe.Close()

		if err := pipe.State.Refresh(cmd.Context()); err != nil {
			return err
		}
		params, report, _ := pipe.State.Params()

		out := struct {
			Params models.RuleParams `json:"params"`
			Report *taylor.Report    `json:"report"`
		}{Params: params, Report: report}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := app.NewStore(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		defer closeStore()

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  cnbtaylor — Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (Prague): %s\n", utils.NowPrague().Format(time.RFC3339))
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    Config file:   %s\n", orNone(cfg.File))
		fmt.Printf("    Cache:         %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL)
		fmt.Printf("    Period:        %s – %s\n", cfg.Pipeline.Epoch, cfg.Pipeline.Horizon)
		fmt.Printf("    Secondary src: %t\n", cfg.Sources.Secondary)
		fmt.Printf("    API Server:    %s\n", cfg.API.Addr())
		fmt.Println()

		// Live sources
		fmt.Println("  Sources:")
		reg, err := providers.NewRegistry(cfg.Sources)
		if err != nil {
			return err
		}
		coverage := reg.Coverage()
		for _, key := range reg.Series() {
			fmt.Printf("    %-12s %s\n", string(key)+":", strings.Join(coverage[key], " → "))
		}
		fmt.Println()

		// Cache status
		fmt.Println("  Cache:")
		for _, key := range provider.AllSeries() {
			info := store.Info(ctx, string(key))
			status := "missing"
			if info.Exists && info.AgeHours != nil {
				status = fmt.Sprintf("age %.1f h", *info.AgeHours)
			} else if info.Exists {
				status = "unreadable"
			}
			fmt.Printf("    %-12s %s\n", string(key)+":", status)
		}
		fmt.Println()

		// Secrets
		fmt.Println("  Secrets:")
		for _, k := range config.CheckSecrets(cfg) {
			status := "not set"
			if k.IsSet {
				status = fmt.Sprintf("set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-20s %s\n", k.Name+":", status)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none, defaults)"
	}
	return s
}

func init() {
	exportCmd.Flags().String("out", "frontend", "output directory for data.json and params.json")
	exportCmd.Flags().String("xlsx", "", "also write an Excel workbook to this path")
	exportCmd.Flags().Duration("timeout", 90*time.Second, "overall fetch timeout")
}
