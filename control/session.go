// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

// Identity is the ssh identity that owns a sharing session or a client
// connection. PublicKey is empty when the peer did not authenticate with
// a key.
type Identity struct {
	Username  string
	IPAddress string
	PublicKey string
}

// SessionConfig holds the values a Session starts with.
type SessionConfig struct {
	Identity              Identity
	Token                 string
	ReadOnlyToken         string
	ClientVersion         string
	ClientProtocolVersion int
}

// ViewportUnset is the viewport dimension before the control server has
// sent a resize.
const ViewportUnset = -1

// Session is the control channel's view of one sharing session. It is
// owned by the reactor goroutine and is not safe for concurrent use.
type Session struct {
	identity              Identity
	token                 string
	readOnlyToken         string
	clientVersion         string
	clientProtocolVersion int

	viewportWidth  int
	viewportHeight int

	finReceived bool
}

// NewSession returns a Session with an unset viewport.
func NewSession(config SessionConfig) *Session {
	return &Session{
		identity:              config.Identity,
		token:                 config.Token,
		readOnlyToken:         config.ReadOnlyToken,
		clientVersion:         config.ClientVersion,
		clientProtocolVersion: config.ClientProtocolVersion,
		viewportWidth:         ViewportUnset,
		viewportHeight:        ViewportUnset,
	}
}

// Identity returns the ssh identity of the session owner.
func (s *Session) Identity() Identity { return s.identity }

// Token returns the read-write session token.
func (s *Session) Token() string { return s.token }

// ReadOnlyToken returns the read-only session token.
func (s *Session) ReadOnlyToken() string { return s.readOnlyToken }

// ClientVersion returns the version string of the client that started
// the session.
func (s *Session) ClientVersion() string { return s.clientVersion }

// ClientProtocolVersion returns the protocol version of the client that
// started the session.
func (s *Session) ClientProtocolVersion() int { return s.clientProtocolVersion }

// SetToken replaces the read-write session token.
func (s *Session) SetToken(token string) { s.token = token }

// Viewport returns the size the control server last requested, or
// ViewportUnset for both dimensions before the first resize.
func (s *Session) Viewport() (width, height int) {
	return s.viewportWidth, s.viewportHeight
}

// SetViewport records the size the control server requested.
func (s *Session) SetViewport(width, height int) {
	s.viewportWidth = width
	s.viewportHeight = height
}

// MarkFinReceived records that the control server announced it is about
// to close the connection. A close after this point is a clean shutdown.
func (s *Session) MarkFinReceived() { s.finReceived = true }

// FinReceived reports whether MarkFinReceived has been called.
func (s *Session) FinReceived() bool { return s.finReceived }

// Client is one locally attached terminal client.
type Client struct {
	ID        int
	IPAddress string
	PublicKey string
	ReadOnly  bool

	// Identified is set once the client has completed authentication.
	// Departures of unidentified clients are never announced.
	Identified bool

	notifiedJoin bool
}

// NotifiedJoin reports whether a join for this client has been sent and
// not yet matched by a left.
func (c *Client) NotifiedJoin() bool { return c.notifiedJoin }
