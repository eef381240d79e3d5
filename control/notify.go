// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"log/slog"

	"github.com/bureau-foundation/termshare/lib/codec"
)

// NotifierConfig configures a Notifier.
type NotifierConfig struct {
	// Enabled gates every outbound message. When false the control
	// channel is off and every Notifier method sends nothing.
	Enabled bool

	// ConnectionTemplate is the join command announced in the header,
	// with %s standing for the session token.
	ConnectionTemplate string

	Logger  *slog.Logger
	Metrics *Metrics
}

// Notifier encodes outbound control messages for one session. Messages
// are appended to the encoder in call order; the Channel writes them to
// the connection after the current reactor step.
//
// A Notifier is owned by the reactor goroutine. Callers on other
// goroutines go through Channel.Submit.
type Notifier struct {
	session            *Session
	encoder            *codec.Encoder
	enabled            bool
	connectionTemplate string
	logger             *slog.Logger
	metrics            *Metrics
}

// NewNotifier returns a Notifier writing into encoder on behalf of
// session.
func NewNotifier(session *Session, encoder *codec.Encoder, config NotifierConfig) *Notifier {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		session:            session,
		encoder:            encoder,
		enabled:            config.Enabled,
		connectionTemplate: config.ConnectionTemplate,
		logger:             logger,
		metrics:            config.Metrics,
	}
}

// Enabled reports whether the control channel is on.
func (n *Notifier) Enabled() bool {
	return n.enabled
}

// Session returns the session this Notifier speaks for.
func (n *Notifier) Session() *Session {
	return n.session
}

// SendHeader announces the session. It is sent once, before any other
// message.
func (n *Notifier) SendHeader() {
	if !n.enabled {
		return
	}

	identity := n.session.Identity()
	n.begin(CommandHeader, 9)
	n.encoder.Int(ProtocolVersion)
	n.encoder.String(identity.IPAddress)
	n.encoder.StringOrNil(identity.PublicKey)
	n.encoder.String(n.session.Token())
	n.encoder.String(n.session.ReadOnlyToken())
	n.encoder.String(n.connectionTemplate)
	n.encoder.String(n.session.ClientVersion())
	n.encoder.Int(int64(n.session.ClientProtocolVersion()))
}

// SendExec forwards a command the session owner asked to run remotely.
func (n *Notifier) SendExec(command string) {
	if !n.enabled {
		return
	}

	identity := n.session.Identity()
	n.begin(CommandExec, 5)
	n.encoder.String(identity.Username)
	n.encoder.String(identity.IPAddress)
	n.encoder.StringOrNil(identity.PublicKey)
	n.encoder.String(command)
}

// NotifyClientJoin announces a newly attached client and marks it so
// that exactly one matching left is sent later.
func (n *Notifier) NotifyClientJoin(client *Client) {
	n.logger.Info("client joined", "client_id", client.ID)

	if !n.enabled {
		return
	}

	client.notifiedJoin = true

	n.begin(CommandClientJoin, 5)
	n.encoder.Int(int64(client.ID))
	n.encoder.String(client.IPAddress)
	n.encoder.StringOrNil(client.PublicKey)
	n.encoder.Bool(client.ReadOnly)
}

// NotifyClientLeft announces a departed client. Nothing is sent for a
// client that never identified or whose join was never announced.
func (n *Notifier) NotifyClientLeft(client *Client) {
	if !client.Identified {
		return
	}

	n.logger.Info("client left", "client_id", client.ID)

	if !n.enabled {
		return
	}
	if !client.notifiedJoin {
		return
	}

	client.notifiedJoin = false

	n.begin(CommandClientLeft, 2)
	n.encoder.Int(int64(client.ID))
}

// SendDaemonMessage relays already-encoded arguments to the control
// server without interpreting them.
func (n *Notifier) SendDaemonMessage(arguments []codec.RawMessage) {
	if !n.enabled {
		return
	}

	n.begin(CommandDaemonOut, 2)
	n.encoder.BeginArray(len(arguments))
	for _, argument := range arguments {
		n.encoder.Raw(argument)
	}
}

// SendFin tells the control server the daemon is finished and marks
// fin, so the close the server answers with ends the channel cleanly.
// The channel is still marked when disabled.
func (n *Notifier) SendFin() {
	n.MarkFinReceived()
	n.logger.Info("sending fin to control server")
	n.SendDaemonMessage([]codec.RawMessage{finArgument})
}

// finArgument is the encoded DaemonFin tag.
var finArgument = func() codec.RawMessage {
	encoder := codec.NewEncoder()
	encoder.Int(DaemonFin)
	return encoder.Take()
}()

// MarkFinReceived records that the control server is about to close the
// connection, so the close is treated as a clean shutdown.
func (n *Notifier) MarkFinReceived() {
	n.session.MarkFinReceived()
}

// begin opens a message array of count elements including the tag.
func (n *Notifier) begin(command OutboundCommand, count int) {
	n.encoder.BeginArray(count)
	n.encoder.Int(int64(command))
	n.metrics.messageSent(command)
}
