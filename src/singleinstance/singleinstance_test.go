package singleinstance

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erwinvanhunen/presentink/src/commands"
)

func usePorts(t *testing.T, start, end int) {
	t.Setenv("SINGLEINSTANCE_PORT_START", strconv.Itoa(start))
	t.Setenv("SINGLEINSTANCE_PORT_END", strconv.Itoa(end))
}

func startServer(t *testing.T, ctx context.Context) Server {
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback listener unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestPortRange(t *testing.T) {
	usePorts(t, 50010, 50000)
	start, end := PortRange()
	assert.Equal(t, 50000, start)
	assert.Equal(t, 50010, end)

	t.Setenv("SINGLEINSTANCE_PORT_START", "80")
	t.Setenv("SINGLEINSTANCE_PORT_END", "bogus")
	start, end = PortRange()
	assert.Equal(t, 1024, start)
	assert.Equal(t, defaultPortEnd, end)
}

func TestServerClientRoundTrip(t *testing.T) {
	usePorts(t, 49710, 49715)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	port, ok := DetectResidentPort(ctx)
	require.True(t, ok)
	assert.Equal(t, srv.Port(), port)

	req, err := commands.NewRequest(commands.TypeText, commands.TypeTextArgs{Text: "hi~"})
	require.NoError(t, err)

	type result struct {
		delivered bool
		resp      commands.Response
		err       error
	}
	done := make(chan result, 1)
	go func() {
		d, resp, err := NewClient().Send(ctx, req)
		done <- result{d, resp, err}
	}()

	conn, err := srv.Next(ctx)
	require.NoError(t, err)
	got := conn.Request()
	assert.Equal(t, commands.TypeText, got.Command)
	var args commands.TypeTextArgs
	require.NoError(t, json.Unmarshal(got.Args, &args))
	assert.Equal(t, "hi~", args.Text)
	require.NoError(t, conn.Respond(commands.Response{OK: true, Data: "typed"}))
	require.NoError(t, conn.Close())

	r := <-done
	require.NoError(t, r.err)
	assert.True(t, r.delivered)
	assert.True(t, r.resp.OK)
	assert.Equal(t, "typed", r.resp.Data)
}

func TestClientWithoutResident(t *testing.T) {
	usePorts(t, 49730, 49731)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	delivered, resp, err := NewClient().Send(ctx, commands.Request{Command: commands.ListMonitors})
	require.NoError(t, err)
	assert.False(t, delivered)
	assert.False(t, resp.OK)
}

func TestSecondServerRefused(t *testing.T) {
	usePorts(t, 49740, 49745)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startServer(t, ctx)

	err := NewServer().Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestMalformedRequestAnsweredDirectly(t *testing.T) {
	usePorts(t, 49750, 49755)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(residentHost, strconv.Itoa(srv.Port())), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var resp commands.Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.False(t, resp.OK)
	assert.Equal(t, commands.CodeBadRequest, resp.Code)
}

func TestNextAfterClose(t *testing.T) {
	usePorts(t, 49760, 49765)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := startServer(t, ctx)
	require.NoError(t, srv.Close())
	require.NoError(t, srv.Close())

	_, err := srv.Next(ctx)
	assert.ErrorIs(t, err, net.ErrClosed)
}
