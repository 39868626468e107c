package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"race-photos-backend/internal/config"
	"race-photos-backend/internal/logging"
)

var (
	sendEmailPaymentID string
	sendEmailForce     bool
)

var sendEmailCmd = &cobra.Command{
	Use:   "send-email",
	Short: "Deliver the photos of a completed payment by email",
	Example: `  # Resend a delivery that already went out
  racephotos send-email --payment-id 6f1c... --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paymentID, err := uuid.Parse(sendEmailPaymentID)
		if err != nil {
			return fmt.Errorf("invalid --payment-id: %w", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: "send-email"})

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.delivery.Send(cmd.Context(), paymentID, sendEmailForce)
		if err != nil {
			return err
		}
		if result.AlreadySent {
			fmt.Fprintf(cmd.OutOrStdout(), "Email already sent for payment %s (use --force to resend)\n", paymentID)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %d photos to %s (message %s, %d attempts)\n",
			result.PhotoCount, result.Recipient, result.MessageID, result.Attempts)
		return nil
	},
}

func init() {
	sendEmailCmd.Flags().StringVar(&sendEmailPaymentID, "payment-id", "", "payment to deliver")
	sendEmailCmd.Flags().BoolVar(&sendEmailForce, "force", false, "send even if the email already went out")
	_ = sendEmailCmd.MarkFlagRequired("payment-id")
}
