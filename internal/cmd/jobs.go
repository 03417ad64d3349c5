package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shipyardlabs/cargohold/pkg/jobstore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the job queue",
	Long: `Inspect job records directly in the local store.

This command group reads the same database the server and worker use, so it
works without a running API server. For remote inspection use the status
endpoint instead.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show one job record",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	jobs, err := jobstore.List(ctx, db)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATUS\tACTION\tTARGET\tCREATED\tELAPSED")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.JobID, job.Status, job.Action, job.TargetPath,
			job.CreatedAt.Format(time.RFC3339), elapsedString(&job))
	}
	return w.Flush()
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	db, err := openJobStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	job, err := jobstore.Get(ctx, db, args[0])
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.JobID)
	fmt.Fprintf(out, "Status:   %s\n", job.Status)
	fmt.Fprintf(out, "Action:   %s\n", job.Action)
	fmt.Fprintf(out, "Target:   %s\n", job.TargetPath)
	if job.SourceRef != "" {
		fmt.Fprintf(out, "Source:   %s\n", job.SourceRef)
	}
	fmt.Fprintf(out, "Owner:    %s\n", job.OwnerID)
	fmt.Fprintf(out, "Created:  %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Fprintf(out, "Started:  %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Fprintf(out, "Finished: %s\n", job.CompletedAt.Format(time.RFC3339))
	}
	if job.ChunksTotal > 0 {
		fmt.Fprintf(out, "Chunks:   %d/%d\n", job.ChunksDone, job.ChunksTotal)
	}
	if job.ErrorMessage != nil {
		fmt.Fprintf(out, "Error:    %s\n", *job.ErrorMessage)
	}
	return nil
}

func elapsedString(job *jobstore.JobRecord) string {
	end := time.Now().UTC()
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	return end.Sub(job.CreatedAt).Round(time.Second).String()
}
