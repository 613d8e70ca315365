// Package main runs the orders messaging service.
//
// Usage:
//
//	orders-messaging serve --config ./configs/config.yaml
//	orders-messaging issue --customer u-1 --item P1:2 --item P2:1
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Sokol111/ecommerce-orders-messaging/internal/catalog"
	"github.com/Sokol111/ecommerce-orders-messaging/internal/handlers"
	"github.com/Sokol111/ecommerce-orders-messaging/internal/ordering"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/core"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/events"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/patterns/outbox"
	rabbitconfig "github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/config"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/connection"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/messaging/rabbitmq/publisher"
	"github.com/Sokol111/ecommerce-orders-messaging/pkg/modules"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:     "orders-messaging",
		Short:   "Orders service reliable messaging over RabbitMQ",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the YAML config file (defaults to CONFIG_FILE)")

	coreOpts := func() []core.Option {
		if configFile == "" {
			return nil
		}
		return []core.Option{core.WithConfigFile(configFile)}
	}

	rootCmd.AddCommand(newServeCmd(coreOpts))
	rootCmd.AddCommand(newIssueCmd(coreOpts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newServeCmd(coreOpts func() []core.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Consume catalog events and relay the outbox until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(serveModules(coreOpts()...))
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func serveModules(opts ...core.Option) fx.Option {
	return fx.Options(
		modules.NewCoreModule(opts...),
		modules.NewObservabilityModule(),
		modules.NewPersistenceModule(),
		modules.NewMessagingModule(),
		catalog.NewCatalogModule(),
		handlers.NewHandlersModule(),
		ordering.NewOrderingModule(),
	)
}

// issueModules leaves out the consumer so a one-off order does not drain the queue.
func issueModules(opts ...core.Option) fx.Option {
	return fx.Options(
		modules.NewCoreModule(opts...),
		modules.NewObservabilityModule(),
		modules.NewPersistenceModule(),
		events.NewEventsModule(),
		rabbitconfig.NewRabbitMQConfigModule(),
		connection.NewConnectionModule(),
		publisher.NewPublisherModule(),
		outbox.NewOutboxModule(),
		catalog.NewCatalogModule(),
		ordering.NewOrderingModule(),
	)
}

func newIssueCmd(coreOpts func() []core.Option) *cobra.Command {
	var (
		customerID string
		items      []string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an order and queue its stock validation event",
		Example: `  orders-messaging issue --customer u-1 --item P1:2 --item P2:1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseLines(items)
			if err != nil {
				return err
			}

			var svc ordering.Service
			app := fx.New(issueModules(coreOpts()...), fx.Populate(&svc))
			if err := app.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = app.Stop(context.WithoutCancel(ctx))
			}()

			order, err := svc.Issue(ctx, ordering.Request{CustomerID: customerID, Lines: lines})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %d issued: id=%s total=%d\n", order.OrderNumber, order.ID, order.TotalCharge)
			return nil
		},
	}

	cmd.Flags().StringVar(&customerID, "customer", "", "customer id (required)")
	cmd.Flags().StringArrayVar(&items, "item", nil, "order line as product:quantity (repeatable)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func parseLines(items []string) ([]ordering.Line, error) {
	lines := make([]ordering.Line, 0, len(items))
	for _, item := range items {
		productID, qty, ok := strings.Cut(item, ":")
		if !ok || productID == "" {
			return nil, fmt.Errorf("invalid item %q: expected product:quantity", item)
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in %q: %w", item, err)
		}
		lines = append(lines, ordering.Line{ProductID: productID, Quantity: n})
	}
	return lines, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
