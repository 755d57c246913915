package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docpipe/internals/conf"
	"docpipe/sdk"
)

func newProcessCmd() *cobra.Command {
	var query string
	var workflow string

	cmd := &cobra.Command{
		Use:   "process <file.pdf>",
		Short: "Submit a PDF for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sdk.NewClient()
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			accepted, err := client.ProcessDocument(ctx, sdk.ProcessDocumentRequest{
				FilePath: args[0],
				Query:    query,
				Workflow: workflow,
			})
			if err != nil {
				return err
			}
			fmt.Printf("task accepted: %s (%s)\n", accepted.TaskID, accepted.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "question to answer about the document")
	cmd.Flags().StringVarP(&workflow, "workflow", "w", "", "workflow to run (optional)")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <task-id>",
		Short: "Query (and consume) a task's outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := sdk.NewClient()
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			status, err := client.TaskStatus(ctx, args[0])
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(status)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docpipe version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(conf.GetConfig().Version)
		},
	}
}
