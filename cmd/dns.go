// Handles the "gcloud dns" commands

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/gcloudkit/gcloud/pkg/dns"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var dnsCmd = &cobra.Command{
	Use:   "dns",
	Short: "Cloud DNS",
	Long:  `List managed zones and edit their records.`,
}

var dnsZonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List managed zones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		dc, err := gcManager.DNS(ctx)
		if err != nil {
			return err
		}
		zones, err := dc.Zones(ctx)
		if err != nil {
			return err
		}
		for _, z := range zones {
			fmt.Printf("%s\t%s\t%s\n", z.Name, z.DNSName, strings.Join(z.NameServers, ","))
		}
		return nil
	},
}

var dnsRecordsCmdConfig struct {
	name string
	typ  string
}

var dnsRecordsCmd = &cobra.Command{
	Use:   "records ZONE",
	Short: "List the record sets of a zone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		dc, err := gcManager.DNS(ctx)
		if err != nil {
			return err
		}
		name := dnsRecordsCmdConfig.name
		if name != "" {
			zone, err := dc.Zone(ctx, args[0])
			if err != nil {
				return err
			}
			name = zone.Record(name, "", 0).Name
		}
		records, err := dc.Records(ctx, args[0], name, strings.ToUpper(dnsRecordsCmdConfig.typ))
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%s\t%d\t%s\t%s\n", r.Name, int(r.TTL/time.Second), r.Type, strings.Join(r.Data, " "))
		}
		return nil
	},
}

var dnsAddCmdConfig struct {
	ttl time.Duration
}

var dnsAddCmd = &cobra.Command{
	Use:   "add ZONE NAME TYPE DATA...",
	Short: "Add a record set",
	Long: `Adds a record set to ZONE. NAME is relative to the zone unless it ends
with a dot; use @ for the zone apex.`,
	Args: cobra.MinimumNArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		dc, err := gcManager.DNS(ctx)
		if err != nil {
			return err
		}
		zone, err := dc.Zone(ctx, args[0])
		if err != nil {
			return err
		}
		record := zone.Record(args[1], args[2], dnsAddCmdConfig.ttl, args[3:]...)
		change, err := dc.Change(ctx, zone.Name, []*dns.Record{record}, nil)
		if err != nil {
			return errors.Wrap(err, "Change failed")
		}
		gcManager.Logger.Infof("Submitted change %s (%s) adding %s %s", change.ID, change.Status, record.Type, record.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dnsCmd)

	dnsCmd.AddCommand(dnsZonesCmd)

	dnsCmd.AddCommand(dnsRecordsCmd)
	dnsRecordsCmd.Flags().StringVar(&dnsRecordsCmdConfig.name, "name", "", "only records at this name")
	dnsRecordsCmd.Flags().StringVar(&dnsRecordsCmdConfig.typ, "type", "", "only records of this type; requires --name")

	dnsCmd.AddCommand(dnsAddCmd)
	dnsAddCmd.Flags().DurationVar(&dnsAddCmdConfig.ttl, "ttl", 5*time.Minute, "time to live")
}
