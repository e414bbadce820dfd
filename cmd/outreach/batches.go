package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"outreach-engine-go/internal/model"
	"outreach-engine-go/internal/summary"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(skipCmd)
	rootCmd.AddCommand(replyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)

	approveCmd.Flags().Bool("all", false, "approve every queued batch")
	skipCmd.Flags().String("reason", "", "reason recorded in the batch notes")
	replyCmd.Flags().String("note", "", "note recorded with the reply")
	historyCmd.Flags().Int("limit", 20, "number of batches to show")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline and warm-up status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		st, err := a.Manager().Status()
		if err != nil {
			return err
		}

		fmt.Printf("Outreach status for %s\n\n", st.Date)
		fmt.Printf("  Queued:           %d\n", st.Pipeline.QueuedCount)
		fmt.Printf("  Approved:         %d\n", st.Pipeline.ApprovedCount)
		fmt.Printf("  Awaiting reply:   %d\n", st.Pipeline.AwaitingReply)
		fmt.Printf("  Replied:          %d\n", st.Pipeline.RepliedCount)
		fmt.Printf("  Closed:           %d\n", st.Pipeline.ClosedCount)
		fmt.Printf("  Response rate:    %.1f%%\n\n", st.Pipeline.ResponseRate)

		if st.Warmup.FirstSendDate == "" {
			fmt.Println("  Warm-up: no sends yet")
		} else if st.Warmup.DailyCap > 0 {
			fmt.Printf("  Warm-up: day %d (week %d), today %d/%d\n",
				st.Warmup.AgeDays, st.Warmup.Week, st.Warmup.SentToday, st.Warmup.DailyCap)
		} else {
			fmt.Printf("  Warm-up: day %d, today %d (no cap)\n", st.Warmup.AgeDays, st.Warmup.SentToday)
		}
		fmt.Printf("  Follow-ups due: %d\n", st.FollowupsDue)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List queued and approved batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		batches, err := a.Store().PendingBatches()
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("Nothing pending.")
			return nil
		}
		printBatchTable(batches)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Show a batch's rendered email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		b, err := a.Store().Batch(id)
		if err != nil {
			return err
		}
		recipients, err := b.Recipients()
		if err != nil {
			return err
		}

		fmt.Printf("Batch #%d - %s [%s]\n", b.ID, b.Organization, b.Status)
		if len(recipients) > 0 {
			fmt.Printf("To:  %s <%s>\n", recipients[0].Name, recipients[0].Email)
			if len(recipients) > 1 {
				var cc []string
				for _, r := range recipients[1:] {
					cc = append(cc, r.Email)
				}
				fmt.Printf("Cc:  %s\n", strings.Join(cc, ", "))
			}
		}
		fmt.Printf("Subject: %s\n\n%s\n", b.Subject, b.Body)
		if b.Notes != "" {
			fmt.Printf("\nNotes:\n%s\n", b.Notes)
		}
		return nil
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>...",
	Short: "Approve queued batches for sending",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return fmt.Errorf("provide batch ids or --all")
		}
		a, err := newApp(false)
		if err != nil {
			return err
		}
		if all {
			n, err := a.Manager().ApproveAll()
			if err != nil {
				return err
			}
			fmt.Printf("Approved %d batches.\n", n)
			return nil
		}
		for _, arg := range args {
			id, err := parseBatchID(arg)
			if err != nil {
				return err
			}
			if err := a.Manager().Approve(id); err != nil {
				return fmt.Errorf("batch %d: %w", id, err)
			}
			fmt.Printf("Approved batch #%d.\n", id)
		}
		return nil
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <id>",
	Short: "Close a batch without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		a, err := newApp(false)
		if err != nil {
			return err
		}
		if err := a.Manager().Skip(id, reason); err != nil {
			return err
		}
		fmt.Printf("Closed batch #%d.\n", id)
		return nil
	},
}

var replyCmd = &cobra.Command{
	Use:   "reply <id>",
	Short: "Record a reply on a sent batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseBatchID(args[0])
		if err != nil {
			return err
		}
		note, _ := cmd.Flags().GetString("note")
		a, err := newApp(false)
		if err != nil {
			return err
		}
		if err := a.Manager().MarkReplied(id, note); err != nil {
			return err
		}
		fmt.Printf("Marked batch #%d as replied.\n", id)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent batches across all statuses",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		a, err := newApp(false)
		if err != nil {
			return err
		}
		batches, err := a.Store().AllBatches(limit)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Println("No batches yet.")
			return nil
		}
		printBatchTable(batches)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		in, err := a.Reporter().Build()
		if err != nil {
			return err
		}
		fmt.Print(summary.Text(in))
		return nil
	},
}

func printBatchTable(batches []model.OutreachBatch) {
	fmt.Printf("%-5s %-10s %-30s %-6s %-4s %s\n", "ID", "STATUS", "ORGANIZATION", "SCORE", "FUP", "CREATED")
	for _, b := range batches {
		org := b.Organization
		if len(org) > 30 {
			org = org[:27] + "..."
		}
		fmt.Printf("%-5d %-10s %-30s %-6d %-4d %s\n",
			b.ID, b.Status, org, b.MaxScore(), b.FollowUpCount, b.CreatedAt.Format("02 Jan 15:04"))
	}
}

func parseBatchID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid batch id %q", s)
	}
	return uint(id), nil
}
