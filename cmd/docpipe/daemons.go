package main

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docpipe/gatewayd/baseserver"
	"docpipe/gatewayd/server"
	"docpipe/internals/taskq"
	"docpipe/workerd"
)

func newGatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			instance := server.New()
			defer instance.Base.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				instance.Base.Logger.Info("signal received, shutting down gateway")
				instance.Shutdown()
			}()

			return instance.Start()
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the task-processing worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			base := baseserver.New()
			defer base.Close()

			dataDir := filepath.Clean(base.Config.Server.DataDir)

			// Without the queue there is nothing to consume, so an open
			// failure ends the process.
			queue, err := taskq.NewSQLite(taskq.SQLiteConfig{
				Path:         filepath.Join(dataDir, "queue", "tasks.db"),
				QueueName:    base.Config.Queue.Name,
				PollInterval: time.Duration(base.Config.Queue.PollInterval) * time.Second,
				RetryDelay:   taskq.FixedDelay(time.Duration(base.Config.Queue.RetryDelay) * time.Second),
				RetryMax:     base.Config.Queue.RetryMax,
			})
			if err != nil {
				return err
			}
			defer queue.Close()

			outcomes, err := server.NewOutcomeStore(base.Config)
			if err != nil {
				return err
			}

			engine, err := workerd.BuildEngine(base.Config, base.Env, queue, outcomes, base.Logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			base.Logger.Info("worker pool starting", "count", base.Config.Worker.Count)
			if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
