// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gcloudkit/gcloud/pkg/gcmgr"
	"github.com/spf13/cobra"
)

var cfgFile string
var project string

var gcManager *gcmgr.Manager

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gcloud",
	Short: "Typed access to Google Cloud services",
	Long: `Manage logs, buckets, datasets, zones, topics and projects on Google
Cloud, with rate limited calls retried automatically.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		mgrArgs := map[string]interface{}{}
		if cfgFile != "" {
			mgrArgs["config-file"] = cfgFile
		}
		if project != "" {
			mgrArgs["project"] = project
		}

		var err error
		gcManager, err = gcmgr.NewManager(mgrArgs)
		if err != nil {
			fmt.Printf("Failed to initialize gcloud manager: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		gcManager.Destroy()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if gcManager == nil || gcManager.Logger == nil {
			fmt.Printf("%v\n", err)
		} else {
			gcManager.Logger.Error(err)
		}
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseKeyValue reads "k1=v1,k2=v2". Malformed pairs are skipped.
func parseKeyValue(s string) map[string]string {
	if s == "" {
		return nil
	}

	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		keyValue := strings.SplitN(pair, "=", 2)
		if len(keyValue) == 2 {
			result[keyValue[0]] = keyValue[1]
		}
	}
	return result
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/gcloud.yaml)")
	rootCmd.PersistentFlags().StringVar(&project, "project", "", "project to act on, overrides the config")
}
