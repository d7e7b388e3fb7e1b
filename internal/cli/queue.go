package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/avantix/internal/mq"
)

// NewQueueCmd создаёт группу команд, отправляющих команды runner через RabbitMQ.
//
// В отличие от remote, ответа runner не ждёт: команда попадает в очередь
// runner.commands, а результат виден в avantix.events или через remote status.
func NewQueueCmd(settingsFn func() *Settings, outputFn func() *Output) *cobra.Command {
	var amqpURL string

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Send run commands to avantix-runner through RabbitMQ",
	}

	defaultURL := os.Getenv("RABBITMQ_URL")
	if defaultURL == "" {
		defaultURL = mq.DefaultURL()
	}
	cmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", defaultURL, "RabbitMQ URL")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "start FLOW",
			Short: "Enqueue a run of FLOW",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				err := withPublisher(cmd.Context(), amqpURL, settingsFn(), func(ctx context.Context, p *mq.Publisher) error {
					return p.PublishRunStart(ctx, args[0])
				})
				if err != nil {
					return err
				}
				outputFn().Success("Run of " + args[0] + " enqueued")
				return nil
			},
		},
		&cobra.Command{
			Use:   "cancel RUN_ID",
			Short: "Enqueue cancellation of a run",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid run id %q: %w", args[0], err)
				}
				err = withPublisher(cmd.Context(), amqpURL, settingsFn(), func(ctx context.Context, p *mq.Publisher) error {
					return p.PublishRunCancel(ctx, id)
				})
				if err != nil {
					return err
				}
				outputFn().Success("Cancellation of run " + id.String() + " enqueued")
				return nil
			},
		},
	)

	return cmd
}

// withPublisher открывает соединение с RabbitMQ на время fn.
func withPublisher(ctx context.Context, url string, settings *Settings, fn func(ctx context.Context, p *mq.Publisher) error) error {
	conn, err := mq.NewConnection(url, "avantix-cli", settings.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		return err
	}
	return fn(ctx, mq.NewPublisher(conn, settings.Logger))
}
