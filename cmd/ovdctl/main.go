// Command ovdctl is the operator CLI for the OVD sync service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/ovdsync/internal/app"
	"github.com/JonMunkholm/ovdsync/internal/config"
	"github.com/JonMunkholm/ovdsync/internal/core"
	"github.com/JonMunkholm/ovdsync/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	actorID    string
)

var rootCmd = &cobra.Command{
	Use:   "ovdctl",
	Short: "Operate the OVD sync service",
	Long: `ovdctl runs OVD imports, exports and migrations against the service
database without going through the HTTP API.

Configuration comes from the same environment variables as the server,
optionally layered over a YAML file given with --config.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&actorID, "user", "ovdctl", "user id recorded in the audit log")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)
	rootCmd.AddCommand(migrateCmd, importCmd, exportCmd, schedulesCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads configuration and sets up logging for one command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging)
	return cfg, nil
}

// openApp connects to the database for commands that need the service.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// Migrations are explicit in the CLI.
	cfg.Database.AutoMigrate = false
	return app.New(ctx, cfg)
}

func cliActor() core.Actor {
	return core.Actor{ID: actorID, Role: "OPERATOR"}
}

// explain prints the support code and action for a failed command.
func explain(err error) error {
	if msg := core.MapError(err); core.IsUserFacing(err) {
		return fmt.Errorf("%w\n%s (%s)", err, msg.Action, msg.Code)
	}
	return err
}
