// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Server represents a tmux server identified by its Unix socket path.
// All operations target this specific server; there is no way to run a
// tmux command without specifying which server it applies to.
type Server struct {
	socketPath string
	configFile string // passed as "-f <path>" on new-session; empty = tmux default
}

// NewServer returns a Server that targets the given socket path.
//
// configFile controls which configuration file tmux loads when the server
// starts (which happens on the first new-session call). Pass "/dev/null"
// to prevent loading the user's ~/.tmux.conf, which all tests must do.
// If configFile is empty, tmux uses its default config resolution.
func NewServer(socketPath, configFile string) *Server {
	return &Server{
		socketPath: socketPath,
		configFile: configFile,
	}
}

// SocketPath returns the Unix socket path that identifies this server.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// NewSession creates a detached tmux session on this server. If command
// is non-empty, the session runs that command instead of the default
// shell.
//
// The -f flag (config file) is passed on new-session because this command
// may start the server if it isn't already running. Once the server is
// running, subsequent commands don't re-read the config file, so only
// new-session needs it.
func (s *Server) NewSession(sessionName string, command ...string) error {
	args := s.newSessionArgs(sessionName)
	args = append(args, command...)
	cmd := exec.Command("tmux", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tmux new-session %q: %w (%s)",
			sessionName, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// newSessionArgs builds the argument list for a new-session command,
// including -f (config), -S (socket), and -d -s (detached, named).
func (s *Server) newSessionArgs(sessionName string) []string {
	var args []string
	if s.configFile != "" {
		args = append(args, "-f", s.configFile)
	}
	args = append(args, "-S", s.socketPath, "new-session", "-d", "-s", sessionName)
	return args
}

// HasSession reports whether a session with the given name exists on
// this server. Returns false if the server is not running.
func (s *Server) HasSession(sessionName string) bool {
	cmd := exec.Command("tmux", "-S", s.socketPath, "has-session", "-t", sessionName)
	return cmd.Run() == nil
}

// KillServer terminates the entire tmux server, stopping all sessions.
// Returns nil if the server was already stopped.
func (s *Server) KillServer() error {
	cmd := exec.Command("tmux", "-S", s.socketPath, "kill-server")
	output, err := cmd.CombinedOutput()
	if err != nil {
		outputString := strings.TrimSpace(string(output))
		// "server exited unexpectedly" appears when the socket file
		// lingers briefly after the server process has exited.
		if strings.Contains(outputString, "no server running") ||
			strings.Contains(outputString, "server exited unexpectedly") {
			return nil
		}
		return fmt.Errorf("tmux kill-server: %w (%s)", err, outputString)
	}
	return nil
}

// SetOption sets a tmux option on this server. If sessionName is empty,
// the option is set globally (-g) and applies to all sessions. If
// sessionName is non-empty, the option is set on that specific session.
func (s *Server) SetOption(sessionName, key, value string) error {
	var args []string
	if sessionName == "" {
		args = []string{"set-option", "-g", key, value}
	} else {
		args = []string{"set-option", "-t", sessionName, key, value}
	}
	if _, err := s.Run(args...); err != nil {
		return fmt.Errorf("setting %q=%q (session %q): %w", key, value, sessionName, err)
	}
	return nil
}

// Run executes an arbitrary tmux subcommand on this server and returns
// the combined output. This is the escape hatch for commands that don't
// have a dedicated method.
//
// The -S flag is automatically prepended. Callers provide only the
// subcommand and its arguments:
//
//	output, err := server.Run("list-windows", "-t", session)
func (s *Server) Run(args ...string) (string, error) {
	fullArgs := append([]string{"-S", s.socketPath}, args...)
	cmd := exec.Command("tmux", fullArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w (%s)",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// PaneFlags are the terminal mode flags tmux reports for a pane.
type PaneFlags struct {
	Cursor        bool // cursor visible
	Insert        bool // insert mode
	KeypadCursor  bool // application cursor keys
	Keypad        bool // application keypad
	Wrap          bool // auto-wrap
	MouseStandard bool
	MouseButton   bool
	MouseAny      bool
	MouseUTF8     bool
	MouseSGR      bool
	Origin        bool // origin mode
}

// PaneInfo describes one pane as reported by list-panes.
type PaneInfo struct {
	// ID is the numeric part of tmux's server-unique pane id (%N).
	ID int

	WindowIndex int
	PaneIndex   int
	Active      bool

	CursorX     int
	CursorY     int
	Width       int
	Height      int
	HistorySize int

	Flags PaneFlags
}

// paneListFormat is the list-panes format string. The field order must
// match parsePaneLine.
var paneListFormat = strings.Join([]string{
	"#{pane_id}",
	"#{window_index}",
	"#{pane_index}",
	"#{pane_active}",
	"#{cursor_x}",
	"#{cursor_y}",
	"#{pane_width}",
	"#{pane_height}",
	"#{history_size}",
	"#{cursor_flag}",
	"#{insert_flag}",
	"#{keypad_cursor_flag}",
	"#{keypad_flag}",
	"#{wrap_flag}",
	"#{mouse_standard_flag}",
	"#{mouse_button_flag}",
	"#{mouse_any_flag}",
	"#{mouse_utf8_flag}",
	"#{mouse_sgr_flag}",
	"#{origin_flag}",
}, " ")

// paneListFields is the number of space-separated fields per line.
const paneListFields = 20

// ListPanes returns every pane of every window in the named session,
// ordered by window index and then pane index.
func (s *Server) ListPanes(sessionName string) ([]PaneInfo, error) {
	output, err := s.Run("list-panes", "-s", "-t", sessionName, "-F", paneListFormat)
	if err != nil {
		return nil, err
	}
	return parsePaneList(output)
}

// parsePaneList parses list-panes output in paneListFormat.
func parsePaneList(output string) ([]PaneInfo, error) {
	var panes []PaneInfo
	for line := range strings.SplitSeq(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		pane, err := parsePaneLine(line)
		if err != nil {
			return nil, err
		}
		panes = append(panes, pane)
	}
	return panes, nil
}

func parsePaneLine(line string) (PaneInfo, error) {
	fields := strings.Fields(line)
	if len(fields) != paneListFields {
		return PaneInfo{}, fmt.Errorf("list-panes line %q: %d fields, want %d", line, len(fields), paneListFields)
	}

	id, ok := strings.CutPrefix(fields[0], "%")
	if !ok {
		return PaneInfo{}, fmt.Errorf("list-panes line %q: pane id %q lacks %% prefix", line, fields[0])
	}

	numbers := make([]int, len(fields))
	for index, field := range fields {
		if index == 0 {
			field = id
		}
		number, err := strconv.Atoi(field)
		if err != nil {
			return PaneInfo{}, fmt.Errorf("list-panes line %q: field %d: %w", line, index, err)
		}
		numbers[index] = number
	}

	flag := func(index int) bool { return numbers[index] != 0 }
	return PaneInfo{
		ID:          numbers[0],
		WindowIndex: numbers[1],
		PaneIndex:   numbers[2],
		Active:      flag(3),
		CursorX:     numbers[4],
		CursorY:     numbers[5],
		Width:       numbers[6],
		Height:      numbers[7],
		HistorySize: numbers[8],
		Flags: PaneFlags{
			Cursor:        flag(9),
			Insert:        flag(10),
			KeypadCursor:  flag(11),
			Keypad:        flag(12),
			Wrap:          flag(13),
			MouseStandard: flag(14),
			MouseButton:   flag(15),
			MouseAny:      flag(16),
			MouseUTF8:     flag(17),
			MouseSGR:      flag(18),
			Origin:        flag(19),
		},
	}, nil
}

// ClientInfo describes one tmux client attached to a session.
type ClientInfo struct {
	// Name is tmux's client name, usually the client's tty path. It is
	// unique among attached clients.
	Name     string
	PID      int
	ReadOnly bool
}

// clientListFormat separates fields with tabs because client names are
// paths that tmux does not quote.
const clientListFormat = "#{client_name}\t#{client_pid}\t#{client_readonly}"

// ListClients returns the clients attached to the named session, in
// tmux's listing order. A session with no attached clients yields an
// empty list.
func (s *Server) ListClients(ctx context.Context, sessionName string) ([]ClientInfo, error) {
	cmd := s.CommandContext(ctx, "list-clients", "-t", sessionName, "-F", clientListFormat)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("tmux list-clients -t %s: %w (%s)",
			sessionName, err, strings.TrimSpace(string(output)))
	}
	return parseClientList(string(output))
}

// parseClientList parses list-clients output in clientListFormat.
func parseClientList(output string) ([]ClientInfo, error) {
	var clients []ClientInfo
	for line := range strings.SplitSeq(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("list-clients line %q: %d fields, want 3", line, len(fields))
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("list-clients line %q: client pid: %w", line, err)
		}
		clients = append(clients, ClientInfo{
			Name:     fields[0],
			PID:      pid,
			ReadOnly: fields[2] == "1",
		})
	}
	return clients, nil
}

// PaneTarget returns the tmux target string for a pane id.
func PaneTarget(paneID int) string {
	return "%" + strconv.Itoa(paneID)
}

// CaptureLines captures up to historyLines lines of scrollback followed
// by the visible area of the target pane. Each returned line keeps its
// SGR escape sequences (-e) and trailing spaces (-N), so cell attributes
// and widths survive. Lines are ordered oldest first.
func (s *Server) CaptureLines(target string, historyLines int) ([]string, error) {
	if historyLines < 0 {
		historyLines = 0
	}
	output, err := s.Run("capture-pane", "-p", "-e", "-N",
		"-t", target,
		"-S", strconv.Itoa(-historyLines),
		"-E", "-")
	if err != nil {
		return nil, err
	}
	output = strings.TrimSuffix(output, "\n")
	if output == "" {
		return nil, nil
	}
	return strings.Split(output, "\n"), nil
}

// SendKeysHex writes data to the target pane byte for byte. send-keys -H
// takes each key as a hex byte, which bypasses tmux's key-name parsing.
func (s *Server) SendKeysHex(target string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	args := make([]string, 0, len(data)+4)
	args = append(args, "send-keys", "-t", target, "-H")
	for _, b := range data {
		args = append(args, strconv.FormatUint(uint64(b), 16))
	}
	_, err := s.Run(args...)
	return err
}

// ResizeWindow sets the size of the target window.
func (s *Server) ResizeWindow(target string, width, height int) error {
	_, err := s.Run("resize-window", "-t", target,
		"-x", strconv.Itoa(width), "-y", strconv.Itoa(height))
	return err
}

// DisplayMessage shows message on the clients attached to the target.
func (s *Server) DisplayMessage(target, message string) error {
	_, err := s.Run("display-message", "-t", target, message)
	return err
}

// CommandContext returns an *exec.Cmd for a tmux subcommand without
// running it. The -S flag is prepended, as with Run. When the context is
// cancelled, the tmux process receives SIGKILL.
func (s *Server) CommandContext(ctx context.Context, args ...string) *exec.Cmd {
	fullArgs := append([]string{"-S", s.socketPath}, args...)
	return exec.CommandContext(ctx, "tmux", fullArgs...)
}
