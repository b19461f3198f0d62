package main

import (
	"context"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"fbadmin/internal/admin"
	"fbadmin/internal/messaging"
)

func newCmdMessaging(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messaging",
		Short: "Send FCM notifications to a topic",
		Args:  cobra.ArbitraryArgs,
		RunE:  usage,
	}
	cmd.AddCommand(newCmdMessagingSend(rt, "common-message",
		"Send a notification using the common notification object",
		messaging.LabelCommon, messaging.BuildCommonMessage))
	cmd.AddCommand(newCmdMessagingSend(rt, "override-message",
		"Send a notification with Android and APNs overrides",
		messaging.LabelOverride, messaging.BuildOverrideMessage))
	return cmd
}

func (rt *runtime) messagingClient(ctx context.Context) (*messaging.Client, error) {
	if _, err := rt.projectID(ctx); err != nil {
		return nil, err
	}
	app, err := rt.provider.NewApp(ctx, option.WithEndpoint(messaging.Endpoint(rt.config.Messaging.BaseURL)))
	if err != nil {
		return nil, err
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, &admin.CredentialError{Source: "messaging", Err: err}
	}
	return messaging.NewClient(client, rt.metrics), nil
}

func newCmdMessagingSend(rt *runtime, use, short, label string, build func(topic string) *messaging.Request) *cobra.Command {
	var (
		topic  string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := rt.messagingClient(cmd.Context())
			if err != nil {
				return err
			}
			if topic == "" {
				topic = rt.config.Messaging.Topic
			}
			req := build(topic)
			req.ValidateOnly = dryRun
			err = client.SendAndReport(cmd.Context(), cmd.OutOrStdout(), label, req)
			if admin.IsRemoteError(err) {
				return &reportedError{err: err}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Topic to send to (default from configuration)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the message without delivering it")
	return cmd
}
