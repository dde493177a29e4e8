package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/agencyledger/internal/adapter/http/dto"
)

func outstandingCmd(opts *options) *cobra.Command {
	var (
		role, currency, entity, search string
		limit, offset                  int
	)

	cmd := &cobra.Command{
		Use:   "outstanding",
		Short: "List entities with an outstanding balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("role", role)
			q.Set("currency_id", currency)
			setIf(q, "entity_id", entity)
			setIf(q, "search", search)
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}

			var page dto.OutstandingPageResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, "/api/v1/outstanding", q, nil, nil, &page); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), page)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ENTITY\tNAME\tCHARGES\tPAYMENTS\tBALANCE")
			for _, b := range page.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.EntityID, truncate(b.DisplayName, 32),
					b.TotalCharges.StringFixed(2), b.TotalPayments.StringFixed(2), b.Balance.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d (%s, policy %s)\n", len(page.Items), page.Total, currency, page.Policy)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "customer", "Entity role: customer, affiliate or supplier")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency ID")
	cmd.Flags().StringVar(&entity, "entity", "", "Restrict to one entity ID")
	cmd.Flags().StringVar(&search, "search", "", "Filter by display name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	_ = cmd.MarkFlagRequired("currency")

	return cmd
}

func ledgerCmd(opts *options) *cobra.Command {
	var currency, passenger string

	cmd := &cobra.Command{
		Use:   "ledger <role> <entity-id>",
		Short: "Show the chronological ledger of one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ledger dto.LedgerResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, entityPath(args[0], args[1], "ledger"),
				entityQuery(currency, passenger), nil, nil, &ledger); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), ledger)
			}
			return printLedger(cmd.OutOrStdout(), ledger)
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "Currency ID")
	cmd.Flags().StringVar(&passenger, "passenger", "", "Restrict to one passenger")
	_ = cmd.MarkFlagRequired("currency")

	return cmd
}

func printLedger(w io.Writer, ledger dto.LedgerResponse) error {
	b := ledger.Balance
	fmt.Fprintf(w, "%s (%s %s) %s\n\n", b.DisplayName, b.EntityRole, b.EntityID, b.CurrencyID)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tLINE\tDIRECTION\tAMOUNT\tREFERENCE\tPASSENGER")
	for _, e := range ledger.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.OccurredAt.Format("2006-01-02"), e.Line, e.Direction,
			e.Amount.StringFixed(2), e.Identification, truncate(e.CounterpartyLabel, 24))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\ncharges %s  payments %s  balance %s\n",
		b.TotalCharges.StringFixed(2), b.TotalPayments.StringFixed(2), b.Balance.StringFixed(2))
	return nil
}

func trendCmd(opts *options) *cobra.Command {
	var currency string

	cmd := &cobra.Command{
		Use:   "trend <role> <entity-id>",
		Short: "Show monthly charges and payments over the trailing year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var months []dto.MonthResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, entityPath(args[0], args[1], "trend"),
				entityQuery(currency, ""), nil, nil, &months); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), months)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MONTH\tCHARGES\tPAYMENTS\tNET")
			for _, m := range months {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Month, m.Charges.StringFixed(2), m.Payments.StringFixed(2), m.Net.StringFixed(2))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&currency, "currency", "", "Currency ID")
	_ = cmd.MarkFlagRequired("currency")

	return cmd
}

func breakdownCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "breakdown <residence-id>",
		Short: "Itemize what is still owed on one residence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var breakdown dto.BreakdownResponse
			path := "/api/v1/residences/" + url.PathEscape(args[0]) + "/breakdown"
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, path, nil, nil, nil, &breakdown); err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), breakdown)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s %s (%s %s)\n\n", breakdown.RecordID, breakdown.PassengerName, breakdown.EntityRole, breakdown.EntityID)

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LINE\tCURRENCY\tCHARGES\tPAYMENTS\tOUTSTANDING")
			for _, l := range breakdown.Lines {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.Line, l.CurrencyID, l.Charges.StringFixed(2), l.Payments.StringFixed(2), l.Outstanding.StringFixed(2))
			}
			for _, t := range breakdown.Totals {
				fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t%s\n", t.CurrencyID, t.Charges.StringFixed(2), t.Payments.StringFixed(2), t.Outstanding.StringFixed(2))
			}
			return tw.Flush()
		},
	}
}

func entityPath(role, id, view string) string {
	return "/api/v1/entities/" + url.PathEscape(role) + "/" + url.PathEscape(id) + "/" + view
}

func entityQuery(currency, passenger string) url.Values {
	q := url.Values{}
	q.Set("currency_id", currency)
	setIf(q, "passenger", passenger)
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
