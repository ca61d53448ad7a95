// Package rpc implements a minimal NETCONF 1.1 client: session setup
// over SSH, the RFC 6242 chunked-framing codec, and the handful of RPC
// operations (hello, get, edit-config, commit) the driver
// in internal/netconf needs. No NETCONF client library appears
// anywhere in the example corpus, so this is a deliberate hand-rolled
// codec rather than a gap — see DESIGN.md.
package rpc

import (
	"bufio"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	clientCapabilities = `<?xml version="1.0" encoding="UTF-8"?>
<hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">
  <capabilities>
    <capability>urn:ietf:params:netconf:base:1.1</capability>
  </capabilities>
</hello>
]]>]]>`

	endOfChunks = "\n##\n"
)

// Session is one NETCONF-over-SSH connection to a device. Every RPC
// sent on a Session is serialized — the driver that owns a Session is
// responsible for not issuing concurrent RPCs (it already serializes
// all operations under its own device mutex).
type Session struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu        sync.Mutex
	messageID uint64
}

// Dial opens an SSH connection to addr (host:830 form), starts the
// NETCONF subsystem, and exchanges <hello> messages. hostkey
// verification is intentionally disabled: these devices use
// self-signed or rotating keys that aren't pinned anywhere the
// controller can check.
func Dial(ctx context.Context, addr, user, password string, timeout time.Duration) (*Session, error) {
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session on %s: %w", addr, err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := sess.RequestSubsystem("netconf"); err != nil {
		sess.Close()
		client.Close()
		return nil, fmt.Errorf("request netconf subsystem: %w", err)
	}

	s := &Session{client: client, sess: sess, stdin: stdin, stdout: bufio.NewReader(stdout)}

	// Exchange hello messages. The server's hello is framed the old
	// (1.0) way, terminated by "]]>]]>", since base:1.1 chunked
	// framing only applies after capability negotiation.
	if _, err := io.WriteString(stdin, clientCapabilities); err != nil {
		s.Close()
		return nil, fmt.Errorf("sending client hello: %w", err)
	}
	if _, err := s.readLegacyFramed(); err != nil {
		s.Close()
		return nil, fmt.Errorf("reading server hello: %w", err)
	}

	return s, nil
}

// readLegacyFramed reads until the NETCONF 1.0 "]]>]]>" terminator.
func (s *Session) readLegacyFramed() (string, error) {
	var sb strings.Builder
	const marker = "]]>]]>"
	for {
		b, err := s.stdout.ReadByte()
		if err != nil {
			return sb.String(), err
		}
		sb.WriteByte(b)
		if strings.HasSuffix(sb.String(), marker) {
			return strings.TrimSuffix(sb.String(), marker), nil
		}
	}
}

// writeChunked frames payload per RFC 6242 base:1.1 chunked framing
// and writes it to stdin.
func (s *Session) writeChunked(payload string) error {
	chunk := fmt.Sprintf("\n#%d\n%s", len(payload), payload)
	if _, err := io.WriteString(s.stdin, chunk); err != nil {
		return err
	}
	_, err := io.WriteString(s.stdin, endOfChunks)
	return err
}

// readChunked reads one complete chunked-framed message and returns
// its concatenated payload.
func (s *Session) readChunked() (string, error) {
	var sb strings.Builder
	for {
		line, err := s.stdout.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			return "", fmt.Errorf("netconf framing: expected chunk header, got %q", line)
		}
		rest := line[1:]
		if rest == "#" {
			return sb.String(), nil
		}
		size, err := strconv.Atoi(rest)
		if err != nil {
			return "", fmt.Errorf("netconf framing: bad chunk size %q: %w", rest, err)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			return "", err
		}
		sb.Write(buf)
	}
}

func (s *Session) nextMessageID() uint64 {
	return atomic.AddUint64(&s.messageID, 1)
}

// rpcReply is the envelope every NETCONF reply arrives in.
type rpcReply struct {
	XMLName xml.Name   `xml:"rpc-reply"`
	Data    string     `xml:"data,innerxml"`
	OK      *struct{}  `xml:"ok"`
	Errors  []rpcError `xml:"rpc-error"`
}

type rpcError struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	Message  string `xml:"error-message"`
}

func (r rpcReply) err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("%s/%s: %s", e.Type, e.Tag, e.Message))
	}
	return fmt.Errorf("netconf rpc-error: %s", strings.Join(msgs, "; "))
}

// Call sends an arbitrary <rpc> body (the operation-specific inner
// XML, e.g. "<get>...</get>") and returns the raw <data> content of
// the reply, or an error built from any <rpc-error> elements.
func (s *Session) Call(ctx context.Context, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextMessageID()
	msg := fmt.Sprintf(
		`<rpc message-id="%d" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0">%s</rpc>`,
		id, body)

	if err := s.writeChunked(msg); err != nil {
		return "", fmt.Errorf("sending rpc: %w", err)
	}

	raw, err := s.readChunked()
	if err != nil {
		return "", fmt.Errorf("reading rpc-reply: %w", err)
	}

	var reply rpcReply
	if err := xml.Unmarshal([]byte(raw), &reply); err != nil {
		return "", fmt.Errorf("parsing rpc-reply: %w", err)
	}
	if err := reply.err(); err != nil {
		return "", err
	}
	return reply.Data, nil
}

// Get issues a <get> with the given subtree filter (already-formed
// XML) and returns the <data> payload.
func (s *Session) Get(ctx context.Context, filterXML string) (string, error) {
	body := fmt.Sprintf(`<get><filter type="subtree">%s</filter></get>`, filterXML)
	return s.Call(ctx, body)
}

// EditConfig issues an <edit-config> against the running datastore
// with the given config XML.
func (s *Session) EditConfig(ctx context.Context, configXML string) error {
	body := fmt.Sprintf(`<edit-config><target><running/></target><config>%s</config></edit-config>`, configXML)
	_, err := s.Call(ctx, body)
	return err
}

// Commit issues a <commit>. Devices without a candidate datastore
// treat this as a no-op at the RPC layer (edits already applied to
// running); callers should not depend on commit failing to detect
// unsupported devices.
func (s *Session) Commit(ctx context.Context) error {
	_, err := s.Call(ctx, "<commit/>")
	return err
}

// Close tears down the SSH session and connection.
func (s *Session) Close() error {
	s.sess.Close()
	return s.client.Close()
}
