package relay

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// RunInTest creates and runs a core for unit tests.
func RunInTest(t *testing.T, config Config) *Core {
	c := New(config)
	StartInTest(t, c)
	return c
}

// StartInTest runs an already configured core, shutting it down when the
// test finishes. Nodes must be added before calling it.
func StartInTest(t *testing.T, c *Core) {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)

	group := parallel.NewGroup(ctx)
	group.Spawn("core", parallel.Continue, c.Run)

	t.Cleanup(func() {
		c.Shutdown()
		group.Exit(nil)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
	})
}
