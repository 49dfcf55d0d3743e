/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/recipe-app/apiserver/config"
	"github.com/recipe-app/apiserver/internal/logging"
	"github.com/recipe-app/apiserver/internal/metrics"
	"github.com/recipe-app/apiserver/internal/mq"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/internal/storage"
	"github.com/recipe-app/apiserver/types"
	"github.com/spf13/cobra"
)

// workerCmd consumes image discard messages and removes the objects.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Removes replaced and orphaned recipe images",
	Long: `Consumes image discard messages published by the API server and
deletes the referenced objects from storage. Requires MQ_BACKEND.

	recipe worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if queue == nil {
			return errors.New("worker requires MQ_BACKEND")
		}
		defer queue.Close()

		objects, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer objects.Close()

		janitor := services.NewImageJanitor(objects, nil, logger)
		handler := func(ctx context.Context, msg mq.Message) error {
			err := janitor.HandleMessage(ctx, msg)
			metrics.RecordImageDiscard(err)
			return err
		}

		logger.WithField("channel", types.ChannelImageDiscarded).Info("worker consuming")
		err = queue.Subscribe(ctx, types.ChannelImageDiscarded, handler)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
