package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/smallbiznis/ancloraflow/internal/migration"
	"github.com/smallbiznis/ancloraflow/internal/verifactu/domain"
	"github.com/smallbiznis/ancloraflow/pkg/db/pagination"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newVerifyChainCmd(a *app) *cobra.Command {
	var (
		user   string
		strict bool
		push   bool
	)

	cmd := &cobra.Command{
		Use:   "verify-chain",
		Short: "Audit a user's registered invoice hash chain",
		Example: `  verifactuctl verify-chain --user 6f1c1f8e-3b5a-4c2d-9e7f-1a2b3c4d5e6f
  verifactuctl verify-chain --user 6f1c1f8e-3b5a-4c2d-9e7f-1a2b3c4d5e6f --strict --push`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDFlag("user", user)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			report, err := a.svc.VerifyChain(ctx, userID, domain.VerifyOptions{Strict: strict})
			if push {
				defer a.push(ctx)
			}
			if err != nil {
				return err
			}
			if err := a.printJSON(report); err != nil {
				return err
			}
			if !report.Valid {
				return errChainBroken
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID owning the chain")
	cmd.Flags().BoolVar(&strict, "strict", false, "Also recompute each invoice's own hash")
	cmd.Flags().BoolVar(&push, "push", false, "Push run metrics to PUSHGATEWAY_URL")
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var user, invoice string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register one invoice with the verification authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDFlag("user", user)
			if err != nil {
				return err
			}
			invoiceID, err := parseUUIDFlag("invoice", invoice)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := a.svc.CheckRegistrable(ctx, invoiceID, userID); err != nil {
				return err
			}
			result, err := a.svc.RegisterInvoice(ctx, invoiceID, userID)
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID owning the invoice")
	cmd.Flags().StringVar(&invoice, "invoice", "", "Invoice ID to register")
	return cmd
}

func newRegisterPendingCmd(a *app) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "register-pending",
		Short: "Register every pending invoice of a user with auto registration on",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDFlag("user", user)
			if err != nil {
				return err
			}

			result, err := a.svc.RegisterPending(cmd.Context(), userID)
			if err != nil {
				return err
			}
			a.log.Info("pending invoices processed",
				zap.Int("total", result.Total),
				zap.Int("successful", result.Successful),
				zap.Int("failed", result.Failed),
			)
			return a.printJSON(result)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID whose pending invoices are registered")
	return cmd
}

func newCancelCmd(a *app) *cobra.Command {
	var user, invoice, reason string

	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a registered invoice with the verification authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDFlag("user", user)
			if err != nil {
				return err
			}
			invoiceID, err := parseUUIDFlag("invoice", invoice)
			if err != nil {
				return err
			}

			result, err := a.svc.CancelInvoice(cmd.Context(), invoiceID, userID, reason)
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID owning the invoice")
	cmd.Flags().StringVar(&invoice, "invoice", "", "Invoice ID to cancel")
	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason sent to the authority")
	return cmd
}

func newLogsCmd(a *app) *cobra.Command {
	var (
		user      string
		invoice   string
		action    string
		limit     int
		pageToken string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List a user's Verifactu registration log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDFlag("user", user)
			if err != nil {
				return err
			}

			req := domain.ListLogsRequest{
				Pagination: pagination.Pagination{PageToken: pageToken, PageSize: limit},
				Action:     strings.TrimSpace(action),
			}
			if invoice != "" {
				invoiceID, err := parseUUIDFlag("invoice", invoice)
				if err != nil {
					return err
				}
				req.InvoiceID = &invoiceID
			}

			resp, err := a.svc.GetLogs(cmd.Context(), userID, req)
			if err != nil {
				return err
			}
			return a.printJSON(resp)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID")
	cmd.Flags().StringVar(&invoice, "invoice", "", "Only entries for this invoice ID")
	cmd.Flags().StringVar(&action, "action", "", "Only entries for this action (register, cancel)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (defaults to the configured logs limit)")
	cmd.Flags().StringVar(&pageToken, "page-token", "", "Token from a previous page")
	return cmd
}

func newReceiptCmd(a *app) *cobra.Command {
	var user, invoice, out string

	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Write the PDF registration receipt of a chained invoice",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUUIDFlag("user", user)
			if err != nil {
				return err
			}
			invoiceID, err := parseUUIDFlag("invoice", invoice)
			if err != nil {
				return err
			}

			receipt, err := a.svc.RenderReceipt(cmd.Context(), invoiceID, userID)
			if err != nil {
				return err
			}
			if out == "" {
				out = receipt.Filename
			}
			if err := os.WriteFile(out, receipt.Body, 0o644); err != nil {
				return fmt.Errorf("write receipt: %w", err)
			}
			a.log.Info("receipt written", zap.String("file", out), zap.Int("bytes", len(receipt.Body)))
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User ID owning the invoice")
	cmd.Flags().StringVar(&invoice, "invoice", "", "Invoice ID")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (defaults to the receipt filename)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := migration.Run(a.conn); err != nil {
				return err
			}
			a.log.Info("schema up to date", zap.String("dialect", a.conn.Dialector.Name()))
			return nil
		},
	}
}
