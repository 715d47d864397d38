package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"inkwell/internal/imageblock"
)

func newClassifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <source>...",
		Short: "Show how pasted content would route",
		Long: `Classifies sources the way the image block routes pastes: img markup
becomes a tag paste, an existing file a binary paste and anything else a
pattern match. Prints the chosen upload route without uploading.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				ev, err := pasteEventFor(arg)
				if err != nil {
					return err
				}
				printClassification(arg, imageblock.Classify(ev))
			}
			return nil
		},
	}
}

func printClassification(src string, c imageblock.Classification) {
	fmt.Printf("%s %s\n", bold(truncate(src, 60)), gray("("+string(c.Kind)+" paste)"))
	if c.Route == imageblock.RouteNone {
		fmt.Printf("  %s %s\n", yellow("dropped:"), c.Reason)
		return
	}
	fmt.Printf("  %s %s\n", green("route:"), cyan(string(c.Route)))
	if c.Source != "" && c.Source != src {
		fmt.Printf("  %s %s\n", green("source:"), truncate(c.Source, 60))
	}
}
