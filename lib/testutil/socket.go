// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"net"
	"os"
	"testing"
)

// SocketDir creates a temporary directory suitable for Unix domain
// sockets. The directory is removed when the test completes.
func SocketDir(t *testing.T) string {
	t.Helper()
	directory, err := os.MkdirTemp("/tmp", "termshare-test-*")
	if err != nil {
		t.Fatalf("creating socket directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(directory)
	})
	return directory
}

// Listener opens a TCP listener on a random loopback port. It is closed
// when the test completes.
func Listener(t *testing.T) *net.TCPListener {
	t.Helper()
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listening on loopback: %v", err)
	}
	t.Cleanup(func() {
		_ = listener.Close()
	})
	return listener
}

// Pipe returns both ends of a loopback TCP connection. Both are closed
// when the test completes.
func Pipe(t *testing.T) (client, server *net.TCPConn) {
	t.Helper()
	listener := Listener(t)

	accepted := make(chan *net.TCPConn, 1)
	failed := make(chan error, 1)
	go func() {
		connection, err := listener.AcceptTCP()
		if err != nil {
			failed <- err
			return
		}
		accepted <- connection
	}()

	client, err := net.DialTCP("tcp", nil, listener.Addr().(*net.TCPAddr))
	if err != nil {
		t.Fatalf("dialing loopback listener: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})

	select {
	case server = <-accepted:
	case err := <-failed:
		t.Fatalf("accepting loopback connection: %v", err)
	}
	t.Cleanup(func() {
		_ = server.Close()
	})
	return client, server
}
