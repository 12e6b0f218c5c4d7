// Handle the "gcloud emulator" command
package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gcloudkit/gcloud/pkg/emulator"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var emulatorAddr string

var emulatorCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Run an in-memory Cloud Storage emulator",
	Long: `Serves the Cloud Storage JSON API from memory. Point a client at it by
setting endpoints.storage to the printed endpoint and no-auth to true.`,

	// Don't need the pre-run and post-run declared in root.go
	PersistentPreRun:  func(cmd *cobra.Command, args []string) {},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {},

	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logrus.New()
		s := emulator.NewServer(emulatorAddr, logger)
		if err := s.Start(); err != nil {
			log.Fatal(err)
		}
		logger.Infof("storage endpoint: %s", s.Endpoint())

		// Shutdown cleanly on ctrl-c or sigterm from kill
		go func() {
			c := make(chan os.Signal, 1)
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
			<-c
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Shutdown(ctx); err != nil {
				logger.Warnf("shutdown: %v", err)
			}
		}()
		s.Wait()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(emulatorCmd)
	emulatorCmd.Flags().StringVar(&emulatorAddr, "address", "localhost:9023", "address to listen on")
}
