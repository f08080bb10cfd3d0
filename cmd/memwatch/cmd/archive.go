package cmd

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/voluzi/memwatch/internal/environ"
	"github.com/voluzi/memwatch/pkg/archive"
)

var (
	archiveOutput string
	level         int
	blockSize     string
	blocks        int
	truncate      bool
	reportPeriod  time.Duration
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Compresses the log with gzip, optionally truncating it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := datasize.ParseString(blockSize); err != nil {
			return fmt.Errorf("invalid block size %q: %w", blockSize, err)
		}

		start := time.Now()
		result, err := archive.Compress(logFile, archiveOutput,
			archive.WithLevel(level),
			archive.WithBlockSize(blockSize),
			archive.WithBlocks(blocks),
			archive.WithTruncate(truncate),
			archive.WithReportPeriod(reportPeriod),
		)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %s to %s (%s -> %s) in %s\n",
			result.Source, result.Destination,
			result.Size.HumanReadable(), result.CompressedSize.HumanReadable(),
			time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVarP(&archiveOutput, "output", "o",
		environ.GetString("ARCHIVE_OUTPUT", ""),
		"Archive path (default <log-file>.<timestamp>.gz)",
	)
	archiveCmd.Flags().IntVar(&level, "level",
		environ.GetInt("ARCHIVE_LEVEL", -1),
		"gzip compression level, -1 for the default",
	)
	archiveCmd.Flags().StringVar(&blockSize, "block-size",
		environ.GetString("ARCHIVE_BLOCK_SIZE", archive.DefaultBlockSize),
		"Size of the blocks compressed in parallel",
	)
	archiveCmd.Flags().IntVar(&blocks, "blocks",
		environ.GetInt("ARCHIVE_BLOCKS", archive.DefaultBlocks),
		"Number of blocks compressed concurrently",
	)
	archiveCmd.Flags().BoolVar(&truncate, "truncate",
		environ.GetBool("ARCHIVE_TRUNCATE", false),
		"Empty the log once the archive is written",
	)
	archiveCmd.Flags().DurationVar(&reportPeriod, "report-period",
		environ.GetDuration("REPORT_PERIOD", archive.DefaultReportPeriod),
		"Period for progress reporting",
	)

	rootCmd.AddCommand(archiveCmd)
}
