// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/termshare/lib/codec"
)

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds resolution and connection together. Zero means no
	// timeout beyond the context's.
	Timeout time.Duration

	// Resolver overrides net.DefaultResolver.
	Resolver *net.Resolver

	Logger *slog.Logger
}

// Dial connects to the control server at host:port. The host is
// resolved and the first address returned is connected; the socket is
// then switched to TCP_NODELAY and non-blocking mode. Every failure
// wraps ErrTransport and names the step that failed.
func Dial(ctx context.Context, host string, port int, options DialOptions) (*net.TCPConn, error) {
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}
	resolver := options.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addresses, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, transportError(err, "resolving %s", host)
	}
	if len(addresses) == 0 {
		return nil, transportError(nil, "resolving %s: no addresses", host)
	}

	address := net.JoinHostPort(addresses[0].String(), strconv.Itoa(port))
	var dialer net.Dialer
	connection, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, transportError(err, "connecting to control server at %s:%d", host, port)
	}
	tcpConnection := connection.(*net.TCPConn)

	if err := configureSocket(tcpConnection); err != nil {
		tcpConnection.Close()
		return nil, err
	}

	logger.Debug("connected to control server", "host", host, "port", port, "address", address)
	return tcpConnection, nil
}

// configureSocket disables Nagle's algorithm and sets O_NONBLOCK on the
// raw descriptor.
func configureSocket(connection *net.TCPConn) error {
	raw, err := connection.SyscallConn()
	if err != nil {
		return transportError(err, "accessing control socket")
	}

	var optionErr error
	controlErr := raw.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
			optionErr = transportError(err, "setting TCP_NODELAY on control socket")
			return
		}
		if err := unix.SetNonblock(int(fd), true); err != nil {
			optionErr = transportError(err, "setting O_NONBLOCK on control socket")
		}
	})
	if controlErr != nil {
		return transportError(controlErr, "accessing control socket")
	}
	return optionErr
}

// ErrorHandler decides how a connection-level event ends the channel.
// err is io.EOF when the server closed the connection, or the read or
// write error. A nil return is a clean shutdown.
type ErrorHandler func(session *Session, err error) error

// DefaultErrorHandler treats a close after the server's fin as a clean
// shutdown and everything else as ErrTransport.
func DefaultErrorHandler(session *Session, err error) error {
	if errors.Is(err, io.EOF) {
		if session.FinReceived() {
			return nil
		}
		return transportError(nil, "connection to control server closed")
	}
	return transportError(err, "connection to control server")
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// Session receives fin state and is passed to ErrorHandler.
	Session *Session

	// Encoder is drained to the connection after every reactor step.
	// The Notifier and Dispatcher write into the same Encoder.
	Encoder *codec.Encoder

	// Dispatch is called for every complete inbound message, on the
	// reactor goroutine. Usually (*Dispatcher).Dispatch.
	Dispatch codec.MessageHandler

	// ErrorHandler defaults to DefaultErrorHandler.
	ErrorHandler ErrorHandler

	// ReceiveBufferSize is the decoder capacity. Zero selects
	// codec.DefaultReceiveBufferSize.
	ReceiveBufferSize int

	Logger  *slog.Logger
	Metrics *Metrics
}

// readChunkSize is the size of each socket read.
const readChunkSize = 16 * 1024

// readResult is one socket read handed from the reader to the reactor.
type readResult struct {
	data []byte
	err  error
}

// Channel runs the control protocol over one connection.
//
// Run owns all protocol state: one goroutine, the reactor, decodes input,
// dispatches messages, and queues encoder output. A reader goroutine and
// a writer goroutine only move bytes. Outbound chunks are written in the
// order they were encoded.
type Channel struct {
	connection   net.Conn
	session      *Session
	encoder      *codec.Encoder
	decoder      *codec.Decoder
	errorHandler ErrorHandler
	logger       *slog.Logger
	metrics      *Metrics

	submissions chan func()
	done        chan struct{}
	started     atomic.Bool
}

// NewChannel returns a Channel over connection. The caller must call Run.
func NewChannel(connection net.Conn, config ChannelConfig) *Channel {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errorHandler := config.ErrorHandler
	if errorHandler == nil {
		errorHandler = DefaultErrorHandler
	}
	dispatch := config.Dispatch
	return &Channel{
		connection:   connection,
		session:      config.Session,
		encoder:      config.Encoder,
		decoder:      codec.NewDecoder(config.ReceiveBufferSize, func(message codec.RawMessage) error { return dispatch(message) }),
		errorHandler: errorHandler,
		logger:       logger,
		metrics:      config.Metrics,
		submissions:  make(chan func()),
		done:         make(chan struct{}),
	}
}

// Submit runs function on the reactor goroutine, after every earlier
// submission. It blocks until the reactor accepts the function and
// reports false if Run has already returned.
func (c *Channel) Submit(function func()) bool {
	select {
	case c.submissions <- function:
		return true
	case <-c.done:
		return false
	}
}

// Done is closed when Run returns.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Run drives the channel until the connection ends, a message fails, or
// ctx is cancelled. It returns the ErrorHandler's verdict for connection
// events, the dispatch error for message failures, and ctx.Err() on
// cancellation. The connection is closed and both helper goroutines have
// exited when Run returns. Run may be called once.
func (c *Channel) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return internalError("channel already running")
	}
	defer close(c.done)

	reads := make(chan readResult)
	writes := make(chan []byte)
	writeErrors := make(chan error, 1)
	stop := make(chan struct{})

	var helpers sync.WaitGroup
	helpers.Add(2)
	go func() {
		defer helpers.Done()
		c.readLoop(reads, stop)
	}()
	go func() {
		defer helpers.Done()
		c.writeLoop(writes, writeErrors)
	}()

	defer func() {
		close(stop)
		close(writes)
		c.connection.Close()
		helpers.Wait()
	}()

	pending := c.collect(nil)
	for {
		var send chan<- []byte
		var next []byte
		if len(pending) > 0 {
			send = writes
			next = pending[0]
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case result := <-reads:
			if result.err != nil {
				return c.connectionEvent(result.err)
			}
			if err := c.receive(result.data); err != nil {
				return err
			}

		case function := <-c.submissions:
			function()

		case send <- next:
			pending[0] = nil
			pending = pending[1:]

		case err := <-writeErrors:
			return c.connectionEvent(err)
		}

		pending = c.collect(pending)
	}
}

// collect moves encoder output onto the outbound queue.
func (c *Channel) collect(pending [][]byte) [][]byte {
	if output := c.encoder.Take(); output != nil {
		pending = append(pending, output)
	}
	return pending
}

// receive drains one chunk into the decoder, dispatching every message
// it completes.
func (c *Channel) receive(data []byte) error {
	c.metrics.received(len(data))
	for len(data) > 0 {
		free := c.decoder.Buffer()
		if len(free) == 0 {
			return protocolError(codec.ErrBufferFull, "receive buffer of %d bytes", c.decoder.Capacity())
		}
		count := copy(free, data)
		data = data[count:]
		if err := c.decoder.Commit(count); err != nil {
			if errors.Is(err, ErrProtocol) || errors.Is(err, ErrInternal) {
				return err
			}
			return protocolError(err, "decoding control stream")
		}
	}
	return nil
}

func (c *Channel) connectionEvent(err error) error {
	verdict := c.errorHandler(c.session, err)
	if verdict == nil {
		c.logger.Info("control connection closed after fin")
	}
	return verdict
}

// readLoop reads the connection until it fails, handing each chunk to
// the reactor. It returns once stop is closed or the final error is
// delivered.
func (c *Channel) readLoop(reads chan<- readResult, stop <-chan struct{}) {
	buffer := make([]byte, readChunkSize)
	for {
		count, err := c.connection.Read(buffer)
		if count > 0 {
			chunk := make([]byte, count)
			copy(chunk, buffer[:count])
			select {
			case reads <- readResult{data: chunk}:
			case <-stop:
				return
			}
		}
		if err != nil {
			select {
			case reads <- readResult{err: err}:
			case <-stop:
			}
			return
		}
	}
}

// writeLoop writes chunks in order until writes is closed or a write
// fails.
func (c *Channel) writeLoop(writes <-chan []byte, writeErrors chan<- error) {
	for chunk := range writes {
		count, err := c.connection.Write(chunk)
		c.metrics.sent(count)
		if err != nil {
			writeErrors <- fmt.Errorf("writing %d bytes: %w", len(chunk), err)
			// Drain so the reactor never blocks sending to a dead writer.
			for range writes {
			}
			return
		}
	}
}
