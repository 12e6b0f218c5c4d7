// Handles the "gcloud logging" commands

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gcloudkit/gcloud/pkg/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var loggingCmd = &cobra.Command{
	Use:   "logging",
	Short: "Cloud Logging",
	Long:  `Write, read and delete log entries.`,
}

var loggingWriteCmdConfig struct {
	severity     string
	labels       string
	resourceType string
	json         bool
}

var loggingWriteCmd = &cobra.Command{
	Use:   "write LOG MESSAGE",
	Short: "Write a log entry",
	Long: `Writes MESSAGE to LOG. With --json the message is parsed as a JSON
object and written as a structured payload.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		lc, err := gcManager.Logging(ctx)
		if err != nil {
			return err
		}

		severity, err := logging.ParseSeverity(loggingWriteCmdConfig.severity)
		if err != nil {
			return err
		}

		var payload interface{} = args[1]
		if loggingWriteCmdConfig.json {
			var obj map[string]interface{}
			if err := json.Unmarshal([]byte(args[1]), &obj); err != nil {
				return errors.Wrap(err, "Message is not a JSON object")
			}
			payload = obj
		}
		p, err := logging.NewPayload(payload)
		if err != nil {
			return err
		}

		entry := &logging.Entry{
			Severity: severity,
			Labels:   parseKeyValue(loggingWriteCmdConfig.labels),
			Payload:  p,
		}
		err = lc.WriteEntries(ctx, []*logging.Entry{entry},
			logging.WithLogName(args[0]),
			logging.WithResource(logging.Resource{Type: loggingWriteCmdConfig.resourceType}))
		if err != nil {
			return errors.Wrap(err, "Write failed")
		}
		gcManager.Logger.Info("Wrote entry to " + args[0])
		return nil
	},
}

var loggingReadCmdConfig struct {
	filter string
	limit  int
	desc   bool
}

var loggingReadCmd = &cobra.Command{
	Use:   "read [LOG]",
	Short: "Read log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		lc, err := gcManager.Logging(ctx)
		if err != nil {
			return err
		}

		var filters []string
		if len(args) == 1 {
			name, err := logging.LogPath(lc.Project(), args[0])
			if err != nil {
				return err
			}
			filters = append(filters, fmt.Sprintf("logName=%q", name))
		}
		if loggingReadCmdConfig.filter != "" {
			filters = append(filters, loggingReadCmdConfig.filter)
		}
		q := logging.EntriesQuery{
			Filter:   strings.Join(filters, " AND "),
			PageSize: loggingReadCmdConfig.limit,
		}
		if loggingReadCmdConfig.desc {
			q.OrderBy = "timestamp desc"
		}

		list, err := lc.Entries(ctx, q)
		if err != nil {
			return err
		}
		for _, e := range list.Entries {
			fmt.Printf("%s %-9s %s\n", e.Timestamp.Format(time.RFC3339), e.Severity, formatPayload(e.Payload))
		}
		return nil
	},
}

func formatPayload(p logging.Payload) string {
	switch v := p.(type) {
	case logging.TextPayload:
		return string(v)
	case logging.StructPayload:
		out, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(map[string]interface{}(v))
		}
		return string(out)
	case logging.ProtoPayload:
		return "<" + v.Any.GetTypeUrl() + ">"
	}
	return ""
}

var loggingLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List the logs of the project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		lc, err := gcManager.Logging(ctx)
		if err != nil {
			return err
		}
		names, err := lc.Logs(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var loggingDeleteCmd = &cobra.Command{
	Use:   "delete LOG",
	Short: "Delete a log and all its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		lc, err := gcManager.Logging(ctx)
		if err != nil {
			return err
		}
		if err := lc.DeleteLog(ctx, args[0]); err != nil {
			return err
		}
		gcManager.Logger.Info("Deleted log " + args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loggingCmd)

	loggingCmd.AddCommand(loggingWriteCmd)
	loggingWriteCmd.Flags().StringVarP(&loggingWriteCmdConfig.severity, "severity", "s", "DEFAULT", "severity of the entry, e.g. INFO or ERROR")
	loggingWriteCmd.Flags().StringVarP(&loggingWriteCmdConfig.labels, "labels", "l", "", "entry labels: key1=value1,key2=value2")
	loggingWriteCmd.Flags().StringVar(&loggingWriteCmdConfig.resourceType, "resource-type", "global", "monitored resource type")
	loggingWriteCmd.Flags().BoolVar(&loggingWriteCmdConfig.json, "json", false, "write the message as a structured payload")

	loggingCmd.AddCommand(loggingReadCmd)
	loggingReadCmd.Flags().StringVar(&loggingReadCmdConfig.filter, "filter", "", "additional filter in the Logging query language")
	loggingReadCmd.Flags().IntVar(&loggingReadCmdConfig.limit, "limit", 20, "maximum number of entries")
	loggingReadCmd.Flags().BoolVar(&loggingReadCmdConfig.desc, "newest-first", true, "list the newest entries first")

	loggingCmd.AddCommand(loggingLogsCmd)
	loggingCmd.AddCommand(loggingDeleteCmd)
}
