package main

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/pdv/internal/adapter/http/dto"
	"github.com/iho/pdv/internal/domain"
)

func priceCmd(opts *clientOptions) *cobra.Command {
	var cost, sale, markup string

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Solve sale price, markup and margin",
		Example: `  pdvctl price --cost 100,00 --markup 50
  pdvctl price --cost 80,00 --sale 100,00`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sale != "" && markup != "" {
				return fmt.Errorf("--sale and --markup are mutually exclusive")
			}

			pricing := domain.RecomputePricing(domain.PricingResult{}, domain.PricingFieldCost, cost)
			switch {
			case markup != "":
				pricing = domain.RecomputePricing(pricing, domain.PricingFieldMarkup, markup)
			case sale != "":
				pricing = domain.RecomputePricing(pricing, domain.PricingFieldSalePrice, sale)
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, dto.PricingFromDomain(pricing))
			}

			display := pricing.Display()
			printRows(out, [][2]string{
				{"cost", display.Cost},
				{"sale price", display.SalePrice},
				{"markup %", blankAsDash(display.MarkupPercent)},
				{"margin %", blankAsDash(display.MarginPercent)},
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&cost, "cost", "", "Unit cost, e.g. 100,00")
	cmd.Flags().StringVar(&sale, "sale", "", "Sale price, e.g. 150,00")
	cmd.Flags().StringVar(&markup, "markup", "", "Markup percent over cost, e.g. 50")

	return cmd
}

func reconcileCmd(opts *clientOptions) *cobra.Command {
	var opening, sales, supplements, withdrawals, counted string

	cmd := &cobra.Command{
		Use:     "reconcile",
		Short:   "Reconcile a cash drawer without contacting the service",
		Example: `  pdvctl reconcile --opening 100,00 --sales 500,00 --withdrawals 50,00 --counted 550,00`,
		RunE: func(cmd *cobra.Command, args []string) error {
			countedAmount, err := domain.ValidateCountedClosing(counted)
			if err != nil {
				return err
			}

			result := domain.Reconcile(domain.CashSession{
				OpeningFloat:   domain.ParseLocalizedAmount(opening),
				CashSales:      domain.ParseLocalizedAmount(sales),
				Supplements:    domain.ParseLocalizedAmount(supplements),
				Withdrawals:    domain.ParseLocalizedAmount(withdrawals),
				CountedClosing: decimal.NewNullDecimal(countedAmount),
			})

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, dto.ReconciliationFromDomain(result))
			}

			printReconciliation(out, dto.ReconciliationFromDomain(result))
			return nil
		},
	}

	cmd.Flags().StringVar(&opening, "opening", "", "Opening float")
	cmd.Flags().StringVar(&sales, "sales", "", "Cash sales total")
	cmd.Flags().StringVar(&supplements, "supplements", "", "Supplements (suprimentos) total")
	cmd.Flags().StringVar(&withdrawals, "withdrawals", "", "Withdrawals (sangrias) total")
	cmd.Flags().StringVar(&counted, "counted", "", "Counted closing amount")

	return cmd
}

func maskCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "mask <keystrokes>",
		Short:   "Apply the live currency mask to raw keystrokes",
		Example: `  pdvctl mask 150   # 1,50`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := domain.ApplyLiveMask(args[0])

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, dto.MaskResponse{
					Masked: masked,
					Amount: domain.ParseLocalizedAmount(masked),
				})
			}

			fmt.Fprintln(out, masked)
			return nil
		},
	}
}

func printReconciliation(w io.Writer, r *dto.ReconciliationResponse) {
	severity := fmt.Sprintf("%s (%s)", r.SeverityLabel, r.Severity)
	if r.Critical {
		severity += " !"
	}

	printRows(w, [][2]string{
		{"expected", r.ExpectedClosingDisplay},
		{"counted", r.CountedClosingDisplay},
		{"variance", r.VarianceDisplay},
		{"severity", severity},
	})
}

func blankAsDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
