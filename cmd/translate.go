// Handles the "gcloud translate" commands

package cmd

import (
	"fmt"

	"github.com/gcloudkit/gcloud/pkg/translate"
	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Cloud Translation",
	Long:  `Translate text and detect its language. Requires api-key in the config.`,
}

var translateTextCmdConfig struct {
	to     string
	from   string
	format string
	model  string
}

var translateTextCmd = &cobra.Command{
	Use:   "text TEXT...",
	Short: "Translate each argument",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		tc, err := gcManager.Translate(ctx)
		if err != nil {
			return err
		}
		out, err := tc.Translate(ctx, args, translate.TranslateOptions{
			To:     translateTextCmdConfig.to,
			From:   translateTextCmdConfig.from,
			Format: translateTextCmdConfig.format,
			Model:  translateTextCmdConfig.model,
		})
		if err != nil {
			return err
		}
		for _, t := range out {
			fmt.Printf("[%s->%s] %s\n", t.Source, t.To, t.Text)
		}
		return nil
	},
}

var translateDetectCmd = &cobra.Command{
	Use:   "detect TEXT...",
	Short: "Detect the language of each argument",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		tc, err := gcManager.Translate(ctx)
		if err != nil {
			return err
		}
		out, err := tc.Detect(ctx, args...)
		if err != nil {
			return err
		}
		for _, d := range out {
			fmt.Printf("%s\t%.2f\t%s\n", d.Language, d.Confidence, d.Text)
		}
		return nil
	},
}

var translateLanguagesCmdConfig struct {
	target string
}

var translateLanguagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		tc, err := gcManager.Translate(ctx)
		if err != nil {
			return err
		}
		langs, err := tc.Languages(ctx, translateLanguagesCmdConfig.target)
		if err != nil {
			return err
		}
		for _, l := range langs {
			fmt.Printf("%s\t%s\n", l.Code, l.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.AddCommand(translateTextCmd)
	translateTextCmd.Flags().StringVarP(&translateTextCmdConfig.to, "to", "t", "en", "target language")
	translateTextCmd.Flags().StringVarP(&translateTextCmdConfig.from, "from", "f", "", "source language, detected if empty")
	translateTextCmd.Flags().StringVar(&translateTextCmdConfig.format, "format", "text", "text or html")
	translateTextCmd.Flags().StringVar(&translateTextCmdConfig.model, "model", "", "nmt or base")

	translateCmd.AddCommand(translateDetectCmd)

	translateCmd.AddCommand(translateLanguagesCmd)
	translateLanguagesCmd.Flags().StringVar(&translateLanguagesCmdConfig.target, "target", "", "language to give the names in")
}
