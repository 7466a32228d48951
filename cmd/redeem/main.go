// Command redeem redeems a list of duoink.co invitation codes through one
// QR-authenticated browser session and keeps the used and rejected codes in
// append-only ledger files.
package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/duoink-tools/redeem/internal/telemetry"
)

var (
	configFile     string
	verboseFlag    bool
	quietFlag      bool
	jsonOutput     bool
	invitationFile string
	usedFile       string
	errorFile      string
	headless       bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./redeem.yaml or ~/.config/redeem/redeem.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&invitationFile, "invitation-file", "", "File listing every invitation code (default: invitation_code.txt)")
	rootCmd.PersistentFlags().StringVar(&usedFile, "used-file", "", "Ledger of consumed codes (default: used_code.txt)")
	rootCmd.PersistentFlags().StringVar(&errorFile, "error-file", "", "Ledger of rejected codes (default: error_code.txt)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Run the browser without a window")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "redeem",
	Short: "redeem - duoink.co invitation code redeemer",
	Long: `Logs into duoink.co with a QR code scan, then redeems every pending
invitation code in one browser session. Consumed codes are appended to the
used ledger, rejected codes to the error ledger; anything else stays pending
for the next run.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			versionCmd.Run(cmd, args)
			return nil
		}
		return runRedeem(rootContext())
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupSignalContext()
		applyVerbosityFlags()
		if cmd == versionCmd {
			return nil
		}
		if err := loadConfig(cmd); err != nil {
			return err
		}
		setupLogging()
		setupEventLog()
		setupTelemetry()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			WarnError("flushing telemetry: %v", err)
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func main() {
	err := rootCmd.Execute()
	printError(err)
	os.Exit(exitCodeFor(err))
}
