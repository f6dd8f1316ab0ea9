package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import the legacy sqlite message store and exit",
	Run:   migrateLegacy,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func migrateLegacy(_ *cobra.Command, _ []string) {
	if err := buildApp(false); err != nil {
		logrus.Fatalf("[APP] %v", err)
	}
	defer StopApp()

	report, err := migrator.Run(context.Background())
	if err != nil {
		logrus.WithError(err).Error("[MIGRATION] Legacy import failed")
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}
