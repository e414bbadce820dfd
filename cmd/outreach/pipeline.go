package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"outreach-engine-go/internal/followup"
	"outreach-engine-go/internal/manager"
	"outreach-engine-go/internal/model"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(followupsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(blocklistCmd)

	sendCmd.Flags().Bool("dry-run", false, "log sends instead of transmitting")
	followupsCmd.Flags().Bool("dry-run", false, "log sends instead of transmitting")
	runCmd.Flags().Bool("dry-run", false, "log sends instead of transmitting")
	blockCmd.Flags().String("reason", "manual", "reason recorded with the entry")
	blockCmd.Flags().Bool("remove", false, "remove the address from the blocklist")
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send approved batches under warm-up limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		a, err := newApp(dryRun)
		if err != nil {
			return err
		}
		result, err := a.Manager().SendPending(cmd.Context())
		if err != nil {
			return err
		}
		printSendResult(result)
		return nil
	},
}

var followupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "Send due follow-ups",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		a, err := newApp(dryRun)
		if err != nil {
			return err
		}
		result, err := a.Manager().ProcessFollowups(cmd.Context())
		if err != nil {
			return err
		}
		printFollowupResult(result)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run <file.json>",
	Short: "Run the full pipeline over a file of opportunity records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		opps, err := model.ParseOpportunities(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		a, err := newApp(dryRun)
		if err != nil {
			return err
		}
		result, err := a.Manager().Run(cmd.Context(), opps)
		if err != nil {
			return err
		}
		printRunResult(result)
		return nil
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <email>",
	Short: "Add or remove a blocklist entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remove, _ := cmd.Flags().GetBool("remove")
		reason, _ := cmd.Flags().GetString("reason")
		a, err := newApp(false)
		if err != nil {
			return err
		}
		if remove {
			if err := a.Store().Unblock(args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s from the blocklist.\n", args[0])
			return nil
		}
		if err := a.Store().Block(args[0], reason); err != nil {
			return err
		}
		fmt.Printf("Blocked %s.\n", args[0])
		return nil
	},
}

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "List blocklisted addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		entries, err := a.Store().Blocklist()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Blocklist is empty.")
			return nil
		}
		fmt.Printf("%-40s %-20s %s\n", "EMAIL", "REASON", "ADDED")
		for _, e := range entries {
			fmt.Printf("%-40s %-20s %s\n", e.Email, e.Reason, e.AddedAt.Format("02 Jan 2006"))
		}
		return nil
	},
}

func printRunResult(r manager.RunResult) {
	fmt.Printf("Run %s\n\n", r.RunID)
	fmt.Printf("Processing: %d in, %d qualified, %d rejected, %d batches created\n",
		r.Processing.Total, r.Processing.Qualified, r.Processing.Rejected, r.Processing.BatchesCreated)
	for _, rej := range r.Processing.Rejections {
		fmt.Printf("  - rejected %s: %s\n", rej.Opportunity.OrganizationName, rej.Reason)
	}
	printSendResult(r.Sending)
	printFollowupResult(r.Followups)
}

func printSendResult(r manager.SendResult) {
	fmt.Printf("Sending: %d attempted, %d sent, %d dry-run, %d deferred, %d bounced, %d failed, %d skipped\n",
		r.Attempted, r.Sent, r.DryRun, r.Deferred, r.Bounced, r.Failed, r.Skipped)
	for _, e := range r.Errors {
		fmt.Printf("  - %s\n", e)
	}
}

func printFollowupResult(r followup.Result) {
	fmt.Printf("Follow-ups: %d due, %d sent, %d dry-run, %d deferred, %d failed\n",
		r.Due, r.Sent, r.DryRun, r.Deferred, r.Failed)
	for _, e := range r.Errors {
		fmt.Printf("  - %s\n", e)
	}
}
