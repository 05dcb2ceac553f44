package cmd

import (
	"fmt"

	"github.com/dehost-labs/dehost/internal/output"
	"github.com/dehost-labs/dehost/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show version and check for updates",
	GroupID: "system",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if short, _ := cmd.Flags().GetBool("short"); short {
			fmt.Fprint(out, versionStr)
			return
		}
		fmt.Fprintf(out, "dehost version %s\n", versionStr)

		checkUpdates, _ := cmd.Flags().GetBool("check")
		if !checkUpdates || version.IsDevelopmentVersion(versionStr) {
			return
		}

		// Network errors are not worth bothering the user with.
		result := version.CheckCached(cmd.Context(), versionStr)
		if result.Error != nil || !result.HasUpdate {
			return
		}
		fmt.Fprintln(out)
		output.Warning("Update available: %s -> %s", versionStr, result.LatestVersion)
		if upd := version.UpdateCommand(result.LatestVersion); upd != "" {
			fmt.Fprintf(out, "Run: %s\n", upd)
		}
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "Print only the version string")
	versionCmd.Flags().Bool("check", true, "Check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}
