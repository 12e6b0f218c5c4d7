// Handles the "gcloud projects" commands

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Resource Manager projects",
}

var projectsListCmdConfig struct {
	filter string
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects you can see",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		rm, err := gcManager.ResourceManager(ctx)
		if err != nil {
			return err
		}
		projects, err := rm.Projects(ctx, projectsListCmdConfig.filter)
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Printf("%s\t%d\t%s\t%s\n", p.ID, p.Number, p.State, p.Name)
		}
		return nil
	},
}

var projectsGetCmd = &cobra.Command{
	Use:   "get [ID]",
	Short: "Show a project, default the configured one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		rm, err := gcManager.ResourceManager(ctx)
		if err != nil {
			return err
		}
		id := gcManager.Config.Project
		if len(args) == 1 {
			id = args[0]
		}
		p, err := rm.Project(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("id:      %s\nnumber:  %d\nname:    %s\nstate:   %s\ncreated: %s\n",
			p.ID, p.Number, p.Name, p.State, p.Created)
		if p.Parent.ID != "" {
			fmt.Printf("parent:  %s/%s\n", p.Parent.Type, p.Parent.ID)
		}
		for k, v := range p.Labels {
			fmt.Printf("label:   %s=%s\n", k, v)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)

	projectsCmd.AddCommand(projectsListCmd)
	projectsListCmd.Flags().StringVar(&projectsListCmdConfig.filter, "filter", "", "filter, e.g. lifecycleState:ACTIVE")

	projectsCmd.AddCommand(projectsGetCmd)
}
