// Handles the "gcloud bigquery" commands

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gcloudkit/gcloud/pkg/bigquery"
	"github.com/spf13/cobra"
)

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "BigQuery",
	Long:  `List datasets and run queries.`,
}

var bigqueryDatasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		bq, err := gcManager.BigQuery(ctx)
		if err != nil {
			return err
		}
		datasets, err := bq.Datasets(ctx)
		if err != nil {
			return err
		}
		for _, d := range datasets {
			fmt.Printf("%s\t%s\n", d.DatasetID, d.Location)
		}
		return nil
	},
}

var bigqueryQueryCmdConfig struct {
	dataset   string
	legacySQL bool
	max       int
	timeout   time.Duration
	dryRun    bool
}

var bigqueryQueryCmd = &cobra.Command{
	Use:   "query SQL",
	Short: "Run a query and print the rows as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		bq, err := gcManager.BigQuery(ctx)
		if err != nil {
			return err
		}

		res, err := bq.Query(ctx, bigquery.QueryOptions{
			Query:          args[0],
			DefaultDataset: bigqueryQueryCmdConfig.dataset,
			LegacySQL:      bigqueryQueryCmdConfig.legacySQL,
			MaxResults:     bigqueryQueryCmdConfig.max,
			Timeout:        bigqueryQueryCmdConfig.timeout,
			DryRun:         bigqueryQueryCmdConfig.dryRun,
		})
		if err != nil {
			return err
		}
		// keep fetching until the job finishes or the rows run out
		enc := json.NewEncoder(os.Stdout)
		for {
			for _, row := range res.Rows {
				if err := enc.Encode(row); err != nil {
					return err
				}
			}
			if bigqueryQueryCmdConfig.dryRun || (res.Complete && res.Token == "") {
				return nil
			}
			if !res.Complete {
				gcManager.Logger.Debugf("job %s still running", res.Job.JobID)
			}
			res, err = bq.QueryResults(ctx, res.Job, res.Token)
			if err != nil {
				return err
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(bigqueryCmd)

	bigqueryCmd.AddCommand(bigqueryDatasetsCmd)

	bigqueryCmd.AddCommand(bigqueryQueryCmd)
	bigqueryQueryCmd.Flags().StringVarP(&bigqueryQueryCmdConfig.dataset, "dataset", "d", "", "dataset for unqualified table names")
	bigqueryQueryCmd.Flags().BoolVar(&bigqueryQueryCmdConfig.legacySQL, "legacy-sql", false, "use legacy SQL")
	bigqueryQueryCmd.Flags().IntVar(&bigqueryQueryCmdConfig.max, "max-results", 0, "rows per page, 0 for the service default")
	bigqueryQueryCmd.Flags().DurationVar(&bigqueryQueryCmdConfig.timeout, "timeout", 0, "how long each request waits for the query")
	bigqueryQueryCmd.Flags().BoolVar(&bigqueryQueryCmdConfig.dryRun, "dry-run", false, "validate the query without running it")
}
