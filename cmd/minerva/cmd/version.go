package cmd

import (
	"fmt"
	"os"

	"github.com/msto63/minerva/pkg/core/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if outputFormat != "table" {
			return encode(os.Stdout, outputFormat, info)
		}

		fmt.Printf("minerva v%s\n", info.Version)
		fmt.Printf("  Wire:       v%s\n", info.Wire)
		fmt.Printf("  Git Commit: %s\n", info.Commit)
		fmt.Printf("  Build Date: %s\n", info.BuildDate)
		fmt.Printf("  Go Version: %s\n", info.GoVersion)
		fmt.Printf("  OS/Arch:    %s\n", info.Platform)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	addOutputFlag(versionCmd)
}
