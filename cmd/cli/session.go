package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iho/pdv/internal/adapter/http/dto"
)

func sessionCmd(opts *clientOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Cash session operations against the PDV service",
	}

	cmd.AddCommand(
		sessionGetCmd(opts),
		sessionPreviewCmd(opts),
		sessionCloseCmd(opts),
		sessionClosingCmd(opts),
	)

	return cmd
}

func sessionGetCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session's backend totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.SessionResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, sessionPath(args[0], ""), nil, "", &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}

			printRows(out, [][2]string{
				{"session", resp.ID},
				{"status", string(resp.Status)},
				{"operator", resp.Operator},
				{"expected", resp.ExpectedClosingDisplay},
			})
			return nil
		},
	}
}

func sessionPreviewCmd(opts *clientOptions) *cobra.Command {
	var counted string

	cmd := &cobra.Command{
		Use:   "preview <session-id>",
		Short: "Reconcile a counted amount against a session without closing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.SessionPreviewResponse
			req := dto.PreviewCloseRequest{CountedClosing: counted}
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, sessionPath(args[0], "/preview"), req, "", &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}

			printReconciliation(out, resp.Reconciliation)
			return nil
		},
	}

	cmd.Flags().StringVar(&counted, "counted", "", "Counted closing amount, e.g. 550,00")
	_ = cmd.MarkFlagRequired("counted")

	return cmd
}

func sessionCloseCmd(opts *clientOptions) *cobra.Command {
	var counted, notes, idempotencyKey string

	cmd := &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a session and queue the closing for the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if idempotencyKey == "" {
				idempotencyKey = uuid.NewString()
			}

			var resp dto.ClosingResponse
			req := dto.CloseSessionRequest{CountedClosing: counted, Notes: notes}
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodPost, sessionPath(args[0], "/close"), req, idempotencyKey, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}

			printClosing(out, &resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&counted, "counted", "", "Counted closing amount, e.g. 550,00")
	cmd.Flags().StringVar(&notes, "notes", "", "Closing notes")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Idempotency key (generated when empty)")
	_ = cmd.MarkFlagRequired("counted")

	return cmd
}

func sessionClosingCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "closing <session-id>",
		Short: "Show a session's closing and whether the backend received it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp dto.ClosingResponse
			if err := newAPIClient(opts).do(cmd.Context(), http.MethodGet, sessionPath(args[0], "/closing"), nil, "", &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return printJSON(out, resp)
			}

			printClosing(out, &resp)
			return nil
		},
	}
}

func printClosing(w io.Writer, c *dto.ClosingResponse) {
	status := strings.ToLower(c.DeliveryStatus)
	if status == "" {
		status = "pending"
	}
	if c.DeliveryAttempts > 0 && !c.Delivered {
		status = fmt.Sprintf("%s after %d attempts", status, c.DeliveryAttempts)
	}

	rows := [][2]string{
		{"closing", c.ID},
		{"session", c.SessionID},
		{"expected", c.ExpectedClosingDisplay},
		{"counted", c.CountedClosingDisplay},
		{"variance", c.VarianceDisplay},
		{"severity", fmt.Sprintf("%s (%s)", c.SeverityLabel, c.Severity)},
		{"status", status},
	}
	if c.LastDeliveryError != "" && !c.Delivered {
		rows = append(rows, [2]string{"last error", c.LastDeliveryError})
	}

	printRows(w, rows)
}

func sessionPath(id, suffix string) string {
	return "/api/v1/cash-sessions/" + url.PathEscape(id) + suffix
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(opts *clientOptions) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(opts.baseURL, "/"),
		http:    &http.Client{Timeout: opts.timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr dto.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Message != "" {
				return fmt.Errorf("%s (status %d): %s", apiErr.Error, resp.StatusCode, apiErr.Message)
			}
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
