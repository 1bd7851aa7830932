package singleinstance

// Resident ownership and command delegation over TCP loopback.

import (
	"context"
	"errors"

	"github.com/erwinvanhunen/presentink/src/commands"
)

// ErrAlreadyRunning is returned by Server.Start when another resident
// answers PING inside the port range.
var ErrAlreadyRunning = errors.New("another resident is already running")

// Server owns the TCP endpoint and answers delegated commands.
type Server interface {
	// Start binds the first free port in the configured range and begins
	// accepting clients.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn is one client connection carrying exactly one request.
type Conn interface {
	Request() commands.Request
	// Respond writes resp as a single JSON line.
	Respond(resp commands.Response) error
	Close() error
}

// Client delegates commands to a resident server.
type Client interface {
	// Send scans the port range, performs the PING handshake and delivers
	// req. If no resident is found it returns delivered=false, err=nil.
	Send(ctx context.Context, req commands.Request) (delivered bool, resp commands.Response, err error)
}

// NewServer returns the TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns the TCP implementation.
func NewClient() Client { return newTcpClient() }
