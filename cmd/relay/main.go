package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/relay"
	"github.com/outofforest/relay/plugin"
)

var graphPath string

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "relay — in-process typed message bus host",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load the node graph and run the bus until interrupted",
	RunE:  run,
}

func init() {
	runCmd.Flags().StringVarP(&graphPath, "graph", "g", "graph.yaml", "Node graph file")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, _ []string) error {
	graph, err := relay.LoadGraph(graphPath)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = logger.WithLogger(ctx, logger.New(logger.DefaultConfig))
	log := logger.Get(ctx)

	core := relay.New(relay.Config{
		NumOfWorkers:      graph.Workers,
		NumOfEraseWorkers: graph.EraseWorkers,
	})

	loader := plugin.NewLoader()
	for _, n := range graph.Nodes {
		lib, err := loader.Load(n.Plugin)
		if err != nil {
			return err
		}
		if _, err := core.AddNode(n.Name, lib); err != nil {
			return err
		}
		log.Info("node attached", zap.String("node", n.Name), zap.String("plugin", n.Plugin))
	}

	group := parallel.NewGroup(ctx)
	group.Spawn("core", parallel.Continue, core.Run)

	<-ctx.Done()
	log.Info("shutting down")
	core.Shutdown()

	group.Exit(nil)
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
