// Package admin defines the typed surface of the OpenTTD admin port
// protocol: the packets exchanged with a game server, the data model they
// carry and the Client interface that a concrete protocol implementation
// has to satisfy. The wire codec itself lives outside this repository;
// embedders inject it through a DialFunc.
package admin

import (
	"time"
)

// Client is one live admin port session, as provided by the protocol
// library. All methods must be safe to call from a single goroutine at a
// time; suds never calls into one client concurrently.
type Client interface {
	// Fd returns the file descriptor backing the session, used as the
	// readiness polling key.
	Fd() int
	// Send encodes and writes one admin packet.
	Send(packet Packet) error
	// Receive returns the next decoded server packet without blocking.
	// It returns (nil, nil) when no complete packet is pending and
	// io.EOF once the server has closed the session.
	Receive() (Packet, error)
	// ReceiveTimeout blocks up to the given duration for the next packet.
	// Used only for the synchronous connect handshake.
	ReceiveTimeout(timeout time.Duration) (Packet, error)
	// Close tears down the underlying socket. Must be idempotent.
	Close() error
}

// DialFunc opens a new admin port session to the given server.
type DialFunc func(host string, port int, timeout time.Duration) (Client, error)
