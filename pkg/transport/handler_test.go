package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ICDSystems/ICD.Connect.Devices-sub000/pkg/cmdtree"
)

// testHandler records inbound trees and answers commands with reply.
type testHandler struct {
	reply    func(*cmdtree.CommandNode) *cmdtree.ResultNode
	commands chan *cmdtree.CommandNode
	results  chan *cmdtree.ResultNode
}

func newTestHandler(reply func(*cmdtree.CommandNode) *cmdtree.ResultNode) *testHandler {
	return &testHandler{
		reply:    reply,
		commands: make(chan *cmdtree.CommandNode, 16),
		results:  make(chan *cmdtree.ResultNode, 16),
	}
}

func (h *testHandler) HandleCommand(_ context.Context, cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	h.commands <- cmd
	if h.reply == nil {
		return nil
	}
	return h.reply(cmd)
}

func (h *testHandler) HandleResult(_ context.Context, res *cmdtree.ResultNode) {
	h.results <- res
}

// powerReply answers every command with Power = 1.
func powerReply(cmd *cmdtree.CommandNode) *cmdtree.ResultNode {
	return cmdtree.NewResult(cmd.Name).AddProperty("Power", 1)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for delivery")
	}
	var zero T
	return zero
}
