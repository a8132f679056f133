// massradar is the CLI entrypoint for the mass-assignment scanner: a
// cobra root command with a "serve" subcommand (starts the RPC HTTP
// server) and a "scan" subcommand (runs one scan against a local
// request store without starting a server).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/radarhq/mass-assignment-radar/internal/adapter"
	"github.com/radarhq/mass-assignment-radar/internal/config"
	"github.com/radarhq/mass-assignment-radar/internal/findingsdb"
	"github.com/radarhq/mass-assignment-radar/internal/observability"
	"github.com/radarhq/mass-assignment-radar/internal/rpc"
	"github.com/radarhq/mass-assignment-radar/internal/scan"
	"github.com/radarhq/mass-assignment-radar/internal/store"
	"github.com/radarhq/mass-assignment-radar/internal/version"
)

var (
	dbPath         string
	findingsDBPath string
	configPath     string
)

var rootCmd = &cobra.Command{
	Use:           "massradar",
	Short:         "Mass-assignment vulnerability scanner",
	Version:       version.Version + " (" + version.Commit + ", " + version.BuildTime + ")",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "massradar.db", "path to the request store database")
	rootCmd.PersistentFlags().StringVar(&findingsDBPath, "findings-db", "massradar_findings.db", "path to the findings sink database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a massradar.yaml config file (optional)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

func openStores() (*store.Store, *findingsdb.Sink, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open request store: %w", err)
	}
	fs, err := findingsdb.Open(findingsDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open findings sink: %w", err)
	}
	return st, fs, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RPC HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, fs, err := openStores()
		if err != nil {
			return err
		}

		defaultConfig, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ad := adapter.New(st)
		mon := observability.New()
		server := rpc.NewServer(ad, st, fs, mon, defaultConfig)
		server.APIKey = os.Getenv("MASSRADAR_API_KEY")

		host := os.Getenv("HOST")
		if host == "" {
			host = "127.0.0.1"
		}
		port := os.Getenv("PORT")
		if port == "" {
			port = "8087"
		}
		addr := host + ":" + port

		log.Printf("🚀 Mass Assignment Radar starting on http://%s", addr)
		log.Printf("🔌 RPC surface: http://%s/api", addr)

		return http.ListenAndServe(addr, server.Router())
	},
}

var (
	scanRequestID string
	scanMaxMut    int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan against a stored baseline request",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanRequestID == "" {
			return fmt.Errorf("--request-id is required")
		}

		st, _, err := openStores()
		if err != nil {
			return err
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if scanMaxMut > 0 {
			cfg.MaxMutations = scanMaxMut
		}

		ad := adapter.New(st)
		result, err := scan.Run(context.Background(), ad, scan.ScanTarget{RequestID: scanRequestID}, cfg, scan.NewCancelToken())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRequestID, "request-id", "", "stored request ID to scan")
	scanCmd.Flags().IntVar(&scanMaxMut, "max-mutations", 0, "override maxMutations from config (0 = use config default)")
}
