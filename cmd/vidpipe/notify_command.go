package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidpipe/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	notifyCmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to every configured notifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" && strings.TrimSpace(cfg.Notifications.AMQPURL) == "" {
				fmt.Fprintln(out, "No notifiers configured (set notifications.ntfy_topic or notifications.amqp_url)")
				return nil
			}

			svc := notifications.NewService(cfg, ctx.cliLogger())
			defer notifications.Close(svc) //nolint:errcheck
			if err := svc.Publish(cmd.Context(), notifications.EventTest, notifications.Payload{}); err != nil {
				return fmt.Errorf("send test notification: %w", err)
			}
			fmt.Fprintln(out, "Test notification sent")
			return nil
		},
	})
	return notifyCmd
}
