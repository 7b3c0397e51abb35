// Command protocolctl runs maintenance and offline tooling against the
// protocol engine: refund sweeps, payload validation and golden replays.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
	"github.com/zatekoja/dentalprotocols/backend/pkg/config"
)

const (
	exitSuccess = 0
	exitError   = 1
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "protocolctl",
		Short:         "Operate the dental protocol engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRefundsCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newCatalogCmd())
	return root
}

func main() {
	observability.InitLogger("protocolctl", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}

// loadConfig is shared by the commands that need the database
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
