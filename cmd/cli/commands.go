package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func entriesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Entry operations",
	}

	var (
		date           string
		amount         string
		direction      string
		description    string
		idempotencyKey string
	)

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Record a credit or debit entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			headers := map[string]string{}
			if idempotencyKey != "" {
				headers["Idempotency-Key"] = idempotencyKey
			}

			var resp map[string]any
			err := newAPIClient(opts.entriesURL, opts.timeout).do(cmd.Context(), "POST", "/api/v1/entries", headers, map[string]string{
				"date":        date,
				"amount":      amount,
				"direction":   direction,
				"description": description,
			}, &resp)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	createCmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "Entry date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&amount, "amount", "", "Positive decimal amount")
	createCmd.Flags().StringVar(&direction, "direction", "", "credit or debit")
	createCmd.Flags().StringVar(&description, "description", "", "Entry description")
	createCmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency-Key header value")
	_ = createCmd.MarkFlagRequired("amount")
	_ = createCmd.MarkFlagRequired("direction")
	_ = createCmd.MarkFlagRequired("description")

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]any
			if err := newAPIClient(opts.entriesURL, opts.timeout).do(cmd.Context(), "GET", "/api/v1/entries/"+url.PathEscape(args[0]), nil, nil, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.AddCommand(createCmd, getCmd)
	return cmd
}

func balancesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Balance queries",
	}

	var date string
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the consolidated balance of a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Date    string `json:"date"`
				Balance string `json:"balance"`
			}
			path := "/api/v1/balances?date=" + url.QueryEscape(date)
			if err := newAPIClient(opts.balancesURL, opts.timeout).do(cmd.Context(), "GET", path, nil, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", resp.Date, resp.Balance)
			return nil
		},
	}
	getCmd.Flags().StringVar(&date, "date", time.Now().Format("2006-01-02"), "Balance date (YYYY-MM-DD)")

	cmd.AddCommand(getCmd)
	return cmd
}

type outboxRecord struct {
	CreatedAt time.Time  `json:"created_at"`
	FailedAt  *time.Time `json:"failed_at"`
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	LastError string     `json:"last_error"`
	Attempts  int        `json:"attempts"`
}

func outboxCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Outbox operations",
	}

	var limit, offset int
	pendingCmd := &cobra.Command{
		Use:   "pending",
		Short: "List unprocessed outbox records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []outboxRecord
			path := "/api/v1/outbox/pending?limit=" + strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
			if err := newAPIClient(opts.entriesURL, opts.timeout).do(cmd.Context(), "GET", path, nil, nil, &records); err != nil {
				return err
			}
			return printRecords(cmd.OutOrStdout(), records)
		},
	}
	pendingCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	pendingCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	requeueCmd := &cobra.Command{
		Use:   "requeue <id>",
		Short: "Clear the failure marker of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record outboxRecord
			path := "/api/v1/outbox/" + url.PathEscape(args[0]) + "/requeue"
			if err := newAPIClient(opts.entriesURL, opts.timeout).do(cmd.Context(), "POST", path, nil, nil, &record); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", record.ID)
			return nil
		},
	}

	var olderThan time.Duration
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete processed records older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			before := time.Now().Add(-olderThan).UTC().Format(time.RFC3339)

			var resp struct {
				Deleted int64 `json:"deleted"`
			}
			path := "/api/v1/outbox/processed?before=" + url.QueryEscape(before)
			if err := newAPIClient(opts.entriesURL, opts.timeout).do(cmd.Context(), "DELETE", path, nil, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records processed before %s\n", resp.Deleted, before)
			return nil
		},
	}
	purgeCmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Minimum age of purged records")

	cmd.AddCommand(pendingCmd, requeueCmd, purgeCmd)
	return cmd
}

func printRecords(w io.Writer, records []outboxRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tATTEMPTS\tSTATE\tLAST ERROR")
	for _, r := range records {
		state := "pending"
		if r.FailedAt != nil {
			state = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Type, r.CreatedAt.Format(time.RFC3339), r.Attempts, state, truncate(r.LastError, 40))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
