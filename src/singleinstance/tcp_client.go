package singleinstance

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/logutil"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) Send(ctx context.Context, req commands.Request) (bool, commands.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return false, commands.Response{}, fmt.Errorf("failed to encode request: %w", err)
	}
	logger := logutil.WithComponent("singleinstance")
	timeout := probeTimeout(ctx)
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return false, commands.Response{}, err
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, timeout) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			continue
		}
		logger.Debug().Str("addr", addr).Str("command", req.Command).Msg("delegating")
		resp, err := exchange(ctx, conn, payload)
		conn.Close()
		return true, resp, err
	}
	return false, commands.Response{}, nil
}

func exchange(ctx context.Context, conn net.Conn, payload []byte) (commands.Response, error) {
	var resp commands.Response
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.Write(append(payload, '\n')); err != nil {
		return resp, fmt.Errorf("failed to send request: %w", err)
	}
	if err := w.Flush(); err != nil {
		return resp, fmt.Errorf("failed to send request: %w", err)
	}
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		if ctx.Err() != nil {
			return resp, ctx.Err()
		}
		return resp, fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
