package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version is the version of the tool
	Version = "0.1.0"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("smtp-send version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
