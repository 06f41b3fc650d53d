package asterisk

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrAuth is returned when the Manager Interface rejects the credentials.
var ErrAuth = errors.New("asterisk: authentication failed")

// ErrClosed is returned by requests on a closed Client.
var ErrClosed = errors.New("asterisk: client closed")

const (
	bannerPrefix = "Asterisk Call Manager"
	endCommand   = "--END COMMAND--"
)

// header is one "Key: Value" line of a Manager Interface action.
type header struct {
	key, value string
}

// response is a Manager Interface response. Only the first value of a
// repeated key is kept in fields; command output lines go to output.
type response struct {
	fields map[string]string
	output []string
}

// Client is a Manager Interface session. It sends one action at a time and
// does not subscribe to events. It is safe for concurrent use.
type Client struct {
	conn    net.Conn
	r       *textproto.Reader
	timeout time.Duration
	banner  string

	mu     sync.Mutex
	nextID int
	closed bool
}

// Dial connects to the Manager Interface at addr and reads its banner.
// timeout bounds the dial and every later request.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("asterisk: dial %s: %w", addr, err)
	}
	c := &Client{
		conn:    conn,
		r:       textproto.NewReader(bufio.NewReader(conn)),
		timeout: timeout,
	}
	if err := c.setDeadline(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("asterisk: dial %s: %w", addr, err)
	}
	banner, err := c.r.ReadLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("asterisk: read banner: %w", err)
	}
	if !strings.HasPrefix(banner, bannerPrefix) {
		conn.Close()
		return nil, fmt.Errorf("asterisk: unexpected banner %q", banner)
	}
	c.banner = banner
	return c, nil
}

// Banner returns the greeting line of the server, e.g.
// "Asterisk Call Manager/1.1".
func (c *Client) Banner() string { return c.banner }

// Login authenticates the session with events disabled.
func (c *Client) Login(ctx context.Context, user, secret string) error {
	resp, err := c.do(ctx, "Login",
		header{"Username", user},
		header{"Secret", secret},
		header{"Events", "off"},
	)
	if err != nil {
		return fmt.Errorf("asterisk: login: %w", err)
	}
	if resp.fields["Response"] != "Success" {
		return fmt.Errorf("%w: %s", ErrAuth, resp.fields["Message"])
	}
	return nil
}

// Command runs a CLI command and returns its output, one line per output line.
// Both the legacy "Response: Follows" framing and the "Output:" header framing
// of newer servers are understood.
func (c *Client) Command(ctx context.Context, command string) (string, error) {
	resp, err := c.do(ctx, "Command", header{"Command", command})
	if err != nil {
		return "", fmt.Errorf("asterisk: command %q: %w", command, err)
	}
	switch resp.fields["Response"] {
	case "Follows", "Success":
	default:
		// Newer servers report unknown commands as errors carrying output.
		if len(resp.output) == 0 {
			return "", fmt.Errorf("asterisk: command %q: %s", command, resp.fields["Message"])
		}
	}
	return strings.Join(resp.output, "\n"), nil
}

// Close logs off and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.setDeadline(context.Background()); err == nil {
		if id, err := c.send("Logoff"); err == nil {
			_, _ = c.readResponse(id)
		}
	}
	return c.conn.Close()
}

func (c *Client) do(ctx context.Context, action string, headers ...header) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if err := c.setDeadline(ctx); err != nil {
		return nil, err
	}
	id, err := c.send(action, headers...)
	if err != nil {
		return nil, err
	}
	return c.readResponse(id)
}

// setDeadline bounds the next request by the client timeout or the deadline
// of ctx, whichever comes first.
func (c *Client) setDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return c.conn.SetDeadline(deadline)
}

// send writes an action. Must be called with c.mu held.
func (c *Client) send(action string, headers ...header) (string, error) {
	c.nextID++
	id := strconv.Itoa(c.nextID)

	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\r\nActionID: %s\r\n", action, id)
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h.key, h.value)
	}
	b.WriteString("\r\n")
	if _, err := c.conn.Write([]byte(b.String())); err != nil {
		return "", fmt.Errorf("write %s: %w", action, err)
	}
	return id, nil
}

// readResponse reads messages until the response to action id arrives.
// Events and responses to other actions are skipped. Must be called with
// c.mu held.
func (c *Client) readResponse(id string) (*response, error) {
	for {
		resp, err := c.readMessage()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if _, ok := resp.fields["Response"]; !ok {
			continue
		}
		if got, ok := resp.fields["ActionID"]; ok && got != id {
			continue
		}
		return resp, nil
	}
}

func (c *Client) readMessage() (*response, error) {
	resp := &response{fields: make(map[string]string)}
	for {
		line, err := c.r.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			if len(resp.fields) == 0 && len(resp.output) == 0 {
				continue
			}
			return resp, nil
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			resp.output = append(resp.output, line)
			continue
		}
		value = strings.TrimPrefix(value, " ")
		switch {
		case key == "Response" && value == "Follows":
			resp.fields[key] = value
			return resp, c.readFollows(resp)
		case key == "Output":
			resp.output = append(resp.output, value)
		default:
			if _, dup := resp.fields[key]; !dup {
				resp.fields[key] = value
			}
		}
	}
}

// readFollows reads the raw output of a legacy command response up to the
// end marker and the blank line closing the message.
func (c *Client) readFollows(resp *response) error {
	headers := true
	for {
		line, err := c.r.ReadLine()
		if err != nil {
			return err
		}
		if headers {
			if key, value, ok := strings.Cut(line, ": "); ok && (key == "Privilege" || key == "ActionID") {
				resp.fields[key] = value
				continue
			}
			headers = false
		}
		if before, found := strings.CutSuffix(line, endCommand); found {
			if before = strings.TrimRight(before, "\r\n"); before != "" {
				resp.output = append(resp.output, before)
			}
			break
		}
		resp.output = append(resp.output, line)
	}
	for {
		line, err := c.r.ReadLine()
		if err != nil || line == "" {
			return err
		}
	}
}
