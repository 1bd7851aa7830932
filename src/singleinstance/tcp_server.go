package singleinstance

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/erwinvanhunen/presentink/src/commands"
	"github.com/erwinvanhunen/presentink/src/logutil"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	handshakeTimeout = 3 * time.Second
	maxRequestBytes  = 1 << 20
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu        sync.Mutex
	lis       net.Listener
	incoming  chan *tcpConn
	done      chan struct{}
	closeOnce sync.Once
	port      int
}

func newTcpServer() *tcpServer {
	return &tcpServer{incoming: make(chan *tcpConn, 8), done: make(chan struct{})}
}

// Start refuses to run next to another resident, then binds the first
// free port of the range.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	logger := logutil.WithComponent("singleinstance")
	if port, ok := DetectResidentPort(ctx); ok {
		logger.Warn().Int("port", port).Msg("resident already answering")
		return fmt.Errorf("port %d: %w", port, ErrAlreadyRunning)
	}

	start, end := getPortRange()
	var lastErr error
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			lastErr = err
			continue
		}
		s.lis = lis
		s.port = port
		logger.Info().Str("addr", addr).Msg("listening")
		go s.acceptLoop(ctx, lis)
		return nil
	}
	logger.Error().Err(lastErr).Int("start", start).Int("end", end).Msg("no free port in range")
	return fmt.Errorf("failed to bind any port in %d..%d: %w", start, end, lastErr)
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	logger := logutil.WithComponent("singleinstance")
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(handshakeTimeout))
		br := bufio.NewReaderSize(c, 4096)
		bw := bufio.NewWriter(c)
		line, err := readLine(br)
		if err != nil {
			logger.Debug().Str("remote", remote).Err(err).Msg("dropping connection")
			_ = c.Close()
			continue
		}
		if line == pingRequest {
			logger.Debug().Str("remote", remote).Msg("PING -> PONG")
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
			continue
		}

		tc := &tcpConn{c: c, w: bw}
		if err := json.Unmarshal([]byte(line), &tc.r); err != nil || tc.r.Command == "" {
			logger.Warn().Str("remote", remote).Msg("malformed request")
			_ = tc.Respond(commands.Response{Error: "malformed request", Code: commands.CodeBadRequest})
			_ = tc.Close()
			continue
		}
		// Commands such as type_text may run for a long time.
		_ = c.SetDeadline(time.Time{})
		logger.Info().Str("remote", remote).Str("command", tc.r.Command).Msg("request")
		select {
		case s.incoming <- tc:
		case <-s.done:
			_ = c.Close()
			return
		case <-ctx.Done():
			_ = c.Close()
			return
		}
	}
}

func readLine(br *bufio.Reader) (string, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		buf = append(buf, chunk...)
		if len(buf) > maxRequestBytes {
			return "", errors.New("request too large")
		}
		if !isPrefix {
			break
		}
	}
	if string(buf) == "PING" {
		return pingRequest, nil
	}
	return string(buf), nil
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.lis != nil {
			_ = s.lis.Close()
		}
		s.mu.Unlock()
		close(s.done)
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r commands.Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() commands.Request { return tc.r }

func (tc *tcpConn) Respond(resp commands.Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if _, err := tc.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
