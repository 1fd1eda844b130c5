package phases

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kforge/internal/device"
	"github.com/roach88/kforge/internal/interp"
	"github.com/roach88/kforge/internal/ir"
)

func testContext(class device.Class, args []ir.Argument) *Context {
	return NewContext(class, true, args, DefaultOptions(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recordingContext(class device.Class, args []ir.Argument) (*Context, *bytes.Buffer) {
	var buf bytes.Buffer
	pc := NewContext(class, true, args, DefaultOptions(), slog.New(slog.NewTextHandler(&buf, nil)))
	return pc, &buf
}

func intArg(v int64) ir.Argument {
	return ir.Scalar{Value: ir.IntValue(ir.KindInt, v)}
}

func runInt(t *testing.T, g *ir.Graph, args ...ir.Argument) (int64, interp.Stats) {
	t.Helper()
	res, err := interp.New(g).Run(context.Background(), args)
	require.NoError(t, err)
	require.True(t, res.HasValue)
	return res.Value.Int(), res.Stats
}

func runPass(t *testing.T, g *ir.Graph, p Pass, pc *Context) {
	t.Helper()
	require.NoError(t, p.Run(g, pc))
	require.NoError(t, ir.Verify(g), "graph malformed after %s", p.Name())
}
