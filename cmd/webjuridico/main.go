// Web Juridico — backend del estudio: calculadora oficial de intereses,
// catálogo de tasas, contador de visitas y formulario de contacto.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/estudiomv/webjuridico/api"
	"github.com/estudiomv/webjuridico/internal/config"
	"github.com/estudiomv/webjuridico/internal/logging"
	"github.com/estudiomv/webjuridico/internal/official"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, populated by PersistentPreRunE.
var (
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webjuridico",
	Short: "Web Juridico — backend del estudio jurídico",
	Long: `Web Juridico
Backend del sitio del estudio: reexpone la calculadora de intereses del
Poder Judicial del Chaco, mantiene el catálogo de tasas con caché y
fallback, cuenta visitas y entrega el formulario de contacto por SMTP.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		logger, err = logging.New(level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tasasCmd)
	rootCmd.AddCommand(calcularCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("webjuridico %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync() //nolint:errcheck

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("starting server",
			zap.String("addr", addr),
			zap.String("version", version),
			zap.Bool("serve_site", cfg.Server.ServeSite))

		srv := api.NewServer(cfg, logger)
		return srv.ListenAndServe(addr)
	},
}

// --- Tasas Command ---

var tasasCmd = &cobra.Command{
	Use:   "tasas",
	Short: "Show the rate catalog (cache, official site or fallback)",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync() //nolint:errcheck

		client := official.NewClient(cfg.Official.Host, cfg.Official.CalcPath)
		store := official.NewSnapshotStore(cfg.Data.Dir + "/chaco-rates-cache.json")
		svc := official.NewCatalogService(client, store, cfg.Official.CatalogTTLDuration(), logger)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		snap := svc.GetCatalog(ctx)
		fmt.Printf("Fuente: %s (actualizado %s)\n", snap.Source, snap.UpdatedAt.Format(time.RFC3339))
		if snap.Note != "" {
			fmt.Printf("Nota: %s\n", snap.Note)
		}
		fmt.Println()
		for _, item := range snap.Items {
			fmt.Printf("  %4s  %s\n", item.ID, item.Label)
		}
		return nil
	},
}

// --- Calcular Command ---

var calcularCmd = &cobra.Command{
	Use:   "calcular",
	Short: "Run one calculation against the official calculator",
	Long: `Run one calculation against the official Chaco judiciary calculator.

Examples:
  webjuridico calcular --importe 10000 --tasa 41 --desde 2026-01-01 --hasta 2026-02-01
  webjuridico calcular --importe 5000 --tasa 6 --pactada 2.5 --desde 01/01/2026 --hasta 01/03/2026`,
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync() //nolint:errcheck

		importe, _ := cmd.Flags().GetFloat64("importe")
		tasa, _ := cmd.Flags().GetString("tasa")
		desde, _ := cmd.Flags().GetString("desde")
		hasta, _ := cmd.Flags().GetString("hasta")

		req := official.CalculationRequest{
			Amount:     importe,
			RateTypeID: tasa,
			FromDate:   desde,
			ToDate:     hasta,
		}
		if cmd.Flags().Changed("pactada") {
			pactada, _ := cmd.Flags().GetFloat64("pactada")
			req.AgreedRate = &pactada
		}

		client := official.NewClient(cfg.Official.Host, cfg.Official.CalcPath)
		calc := official.NewCalculator(client, logger)

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		result, err := calc.Calculate(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", official.ErrorKind(err), err)
		}

		fmt.Println(result.Text)
		return nil
	},
}

func init() {
	calcularCmd.Flags().Float64("importe", 0, "capital amount in pesos")
	calcularCmd.Flags().String("tasa", "", "rate type id (see the tasas command)")
	calcularCmd.Flags().String("desde", "", "start date (YYYY-MM-DD or DD/MM/YYYY)")
	calcularCmd.Flags().String("hasta", "", "end date (YYYY-MM-DD or DD/MM/YYYY)")
	calcularCmd.Flags().Float64("pactada", 0, "agreed monthly rate percentage (rate type 6 only)")

	calcularCmd.MarkFlagRequired("importe") //nolint:errcheck
	calcularCmd.MarkFlagRequired("tasa")    //nolint:errcheck
	calcularCmd.MarkFlagRequired("desde")   //nolint:errcheck
	calcularCmd.MarkFlagRequired("hasta")   //nolint:errcheck
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  Web Juridico — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    Server:        %s:%d (site: %t)\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.ServeSite)
		fmt.Printf("    Official host: %s\n", cfg.Official.Host)
		fmt.Printf("    Catalog TTL:   %s\n", cfg.Official.CatalogTTLDuration())
		fmt.Printf("    Data dir:      %s\n", cfg.Data.Dir)
		fmt.Println()

		fmt.Println("  Mail settings:")
		for _, s := range config.CheckMailSettings(cfg) {
			status := "❌ not set"
			if s.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", s.Source, s.Masked)
			}
			fmt.Printf("    %-25s %s\n", s.Name+":", status)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
