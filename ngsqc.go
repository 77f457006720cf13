package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const VERSION = "0.3.0"

const (
	DEFAULT_QUAL_OFFSET    = 33
	DEFAULT_MIN_PHRED      = 15
	DEFAULT_QUAL_THRESHOLD = 20
	DEFAULT_PASS_RATE      = 0.8
)

// Define color functions
var (
	bold   = color.New(color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// exitFunc is replaced in tests
var exitFunc = os.Exit

func getColorizedLogo() string {
	return cyan("⣿⣶⣦⣄⣀")
}

// RootCommand assembles the ngsqc command tree
func RootCommand() *cobra.Command {
	var showVersion bool

	rootCmd := &cobra.Command{
		Use:           "ngsqc",
		Short:         bold("Quality control toolkit for FASTQ files"),
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "ngsqc %s\n", VERSION)
				exitFunc(0)
				return
			}
			helpFunc(cmd, args)
		},
	}

	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	rootCmd.AddCommand(
		FilterCommand(),
		TrimCommand(),
		HardTrimCommand(),
		SplitCommand(),
		DedupCommand(),
		ConvertCommand(),
		StatsCommand(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Custom error handling
	if err := RootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		fmt.Fprintln(os.Stderr, red("Try 'ngsqc --help' for more information"))
		stop()
		exitFunc(1)
	}
}
