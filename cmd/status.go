package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/webcorpus/harvester/internal/config"
	"github.com/webcorpus/harvester/internal/logging"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Prints the frontier tracking counts",
		Long: `Opens the configured frontier state and prints how many URLs sit in
each tracking set. Useful before resuming an interrupted run.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	front, err := buildFrontier(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := front.Close(); cerr != nil {
			logger.Warn("close frontier", zap.Error(cerr))
		}
	}()

	counts, err := front.Counts(cmd.Context())
	if err != nil {
		return fmt.Errorf("frontier counts: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pending:     %d\n", counts.Pending)
	fmt.Fprintf(cmd.OutOrStdout(), "in_progress: %d\n", counts.InProgress)
	fmt.Fprintf(cmd.OutOrStdout(), "done:        %d\n", counts.Done)
	fmt.Fprintf(cmd.OutOrStdout(), "errored:     %d\n", counts.Errored)
	return nil
}
