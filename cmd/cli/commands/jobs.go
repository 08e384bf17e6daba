package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/client"
)

// Flag names
const (
	flagFile     = "file"
	flagWebhook  = "webhook"
	flagID       = "id"
	flagWait     = "wait"
	flagInterval = "interval"
)

const defaultWaitInterval = 2 * time.Second

func init() {
	jobsCmd.AddCommand(uploadCmd)
	jobsCmd.AddCommand(statusCmd)
	jobsCmd.AddCommand(abortCmd)

	uploadCmd.Flags().StringP(flagFile, "f", "", "CSV file to upload")
	uploadCmd.Flags().StringP(flagWebhook, "w", "", "Webhook URL notified when the job completes")
	if err := uploadCmd.MarkFlagRequired(flagFile); err != nil {
		panic(fmt.Errorf("failed to mark file flag as required for upload command: %w", err))
	}

	statusCmd.Flags().StringP(flagID, "i", "", "Request ID of the job")
	statusCmd.Flags().Bool(flagWait, false, "Poll until the job completes or fails")
	statusCmd.Flags().Duration(flagInterval, defaultWaitInterval, "Polling interval used with --wait")
	if err := statusCmd.MarkFlagRequired(flagID); err != nil {
		panic(fmt.Errorf("failed to mark id flag as required for status command: %w", err))
	}

	abortCmd.Flags().StringP(flagID, "i", "", "Request ID of the job")
	if err := abortCmd.MarkFlagRequired(flagID); err != nil {
		panic(fmt.Errorf("failed to mark id flag as required for abort command: %w", err))
	}
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage image processing jobs",
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload a product CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString(flagFile)
		webhook, _ := cmd.Flags().GetString(flagWebhook)

		resp, err := apiClient.Upload(cmd.Context(), client.UploadParams{
			FilePath:   file,
			WebhookURL: webhook,
		})
		if err != nil {
			return fmt.Errorf("error uploading file: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString(flagID)
		wait, _ := cmd.Flags().GetBool(flagWait)
		interval, _ := cmd.Flags().GetDuration(flagInterval)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		for {
			status, err := apiClient.GetStatus(ctx, id)
			if err != nil {
				return fmt.Errorf("error fetching job status: %w", err)
			}
			if !wait || isTerminal(status.Status) {
				return printJSON(cmd.OutOrStdout(), status)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	},
}

var abortCmd = &cobra.Command{
	Use:   "abort",
	Short: "Abort a pending or running job",
	RunE: func(cmd *cobra.Command, _ []string) error {
		id, _ := cmd.Flags().GetString(flagID)

		resp, err := apiClient.Abort(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("error aborting job: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func isTerminal(status string) bool {
	return models.JobStatus(status).IsTerminal()
}

func printJSON(w io.Writer, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(prettyJSON))
	return err
}

// GetJobsCmd returns the jobs command
func GetJobsCmd() *cobra.Command {
	return jobsCmd
}
