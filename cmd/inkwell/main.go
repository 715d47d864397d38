package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Color helpers shared across the subcommands.
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "inkwell",
		Short: "Image block engine for block-structured documents",
		Long: fmt.Sprintf(`%s manages image blocks for rich-text documents: uploads,
paste routing, tunes and a development backend.

%s
  inkwell serve                          # Run the dev server
  inkwell upload ./photo.png             # Upload a local file
  inkwell upload https://x.io/pic.jpg    # Ingest a remote image
  inkwell classify '<img src="a.png">'   # Show how a paste would route`,
			bold("Inkwell "+version),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: search inkwell.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug logging")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newUploadCommand())
	rootCmd.AddCommand(newClassifyCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", bold("inkwell"), version)
		},
	}
}

// configPathFromFlags resolves the config file: the flag wins, then the
// INKWELL_CONFIG environment variable, then the default search paths.
func configPathFromFlags(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return os.Getenv("INKWELL_CONFIG")
}
