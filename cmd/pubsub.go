// Handles the "gcloud pubsub" commands

package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gcloudkit/gcloud/pkg/pubsub"
	"github.com/spf13/cobra"
)

var pubsubCmd = &cobra.Command{
	Use:   "pubsub",
	Short: "Cloud Pub/Sub",
	Long:  `List topics, publish messages and pull them from subscriptions.`,
}

var pubsubTopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ps, err := gcManager.PubSub(ctx)
		if err != nil {
			return err
		}
		topics, err := ps.Topics(ctx)
		if err != nil {
			return err
		}
		for _, t := range topics {
			fmt.Println(pubsub.ShortName(t.Name))
		}
		return nil
	},
}

var pubsubPublishCmdConfig struct {
	attributes  string
	orderingKey string
}

var pubsubPublishCmd = &cobra.Command{
	Use:   "publish TOPIC MESSAGE...",
	Short: "Publish messages, one per argument",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ps, err := gcManager.PubSub(ctx)
		if err != nil {
			return err
		}
		attrs := parseKeyValue(pubsubPublishCmdConfig.attributes)
		var msgs []*pubsub.Message
		for _, data := range args[1:] {
			msgs = append(msgs, &pubsub.Message{
				Data:        []byte(data),
				Attributes:  attrs,
				OrderingKey: pubsubPublishCmdConfig.orderingKey,
			})
		}
		ids, err := ps.Publish(ctx, args[0], msgs...)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var pubsubPullCmdConfig struct {
	max  int
	wait bool
	ack  bool
}

var pubsubPullCmd = &cobra.Command{
	Use:   "pull SUBSCRIPTION",
	Short: "Pull messages from a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ps, err := gcManager.PubSub(ctx)
		if err != nil {
			return err
		}
		received, err := ps.Pull(ctx, args[0], pubsubPullCmdConfig.max, !pubsubPullCmdConfig.wait)
		if err != nil {
			return err
		}

		var ackIDs []string
		for _, r := range received {
			fmt.Printf("%s\t%s\t%s\n", r.Message.ID, formatAttributes(r.Message.Attributes), r.Message.Data)
			ackIDs = append(ackIDs, r.AckID)
		}
		if pubsubPullCmdConfig.ack {
			return ps.Acknowledge(ctx, args[0], ackIDs...)
		}
		return nil
	},
}

func formatAttributes(attrs map[string]string) string {
	var pairs []string
	for k, v := range attrs {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func init() {
	rootCmd.AddCommand(pubsubCmd)

	pubsubCmd.AddCommand(pubsubTopicsCmd)

	pubsubCmd.AddCommand(pubsubPublishCmd)
	pubsubPublishCmd.Flags().StringVarP(&pubsubPublishCmdConfig.attributes, "attributes", "a", "", "message attributes: key1=value1,key2=value2")
	pubsubPublishCmd.Flags().StringVar(&pubsubPublishCmdConfig.orderingKey, "ordering-key", "", "ordering key")

	pubsubCmd.AddCommand(pubsubPullCmd)
	pubsubPullCmd.Flags().IntVar(&pubsubPullCmdConfig.max, "max", 10, "maximum number of messages")
	pubsubPullCmd.Flags().BoolVar(&pubsubPullCmdConfig.wait, "wait", false, "wait for messages instead of returning at once")
	pubsubPullCmd.Flags().BoolVar(&pubsubPullCmdConfig.ack, "ack", true, "acknowledge the pulled messages")
}
