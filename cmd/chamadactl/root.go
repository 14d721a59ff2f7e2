package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/chamada/internal/audit"
	"github.com/saturnino-fabrica-de-software/chamada/internal/config"
	"github.com/saturnino-fabrica-de-software/chamada/internal/service"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chamadactl",
	Short: "Offline administration of the Chamada attendance store",
	Long: `chamadactl works directly on the configured store (STORE_BACKEND) without
going through the HTTP API. It can run next to the server on the same
DATA_DIR; the server keeps its own in-memory copy of the identities and picks
up changes made here at its next reload (an enrollment or a restart).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		// stdout fica para a saída do comando
		logger = config.NewLoggerTo(os.Stderr, cfg.Environment)
		if !mustGetBool(cmd, "verbose") {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		}
		return nil
	},
}

// auditPublisher records CLI changes to biometric data. The audit trail
// always goes to the full logger, even without --verbose.
func auditPublisher() service.Publisher {
	if !cfg.AuditLog {
		return service.Publishers{}
	}
	return audit.NewPublisher(audit.NewSlogLogger(config.NewLoggerTo(os.Stderr, cfg.Environment)), "cli")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
