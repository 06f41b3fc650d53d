package asterisk

import (
	"bufio"
	"context"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
)

// fakeAMI is a Manager Interface server for one connection. handle writes the
// reply to each action; it gets the action headers and the raw connection.
type fakeAMI struct {
	ln     net.Listener
	banner string
	handle func(action textproto.MIMEHeader, w *bufio.Writer)

	wg      sync.WaitGroup
	mu      sync.Mutex
	actions []textproto.MIMEHeader
}

func newFakeAMI(t *testing.T, handle func(action textproto.MIMEHeader, w *bufio.Writer)) *fakeAMI {
	t.Helper()
	return newFakeAMIWithBanner(t, "Asterisk Call Manager/1.1", handle)
}

func newFakeAMIWithBanner(t *testing.T, banner string, handle func(action textproto.MIMEHeader, w *bufio.Writer)) *fakeAMI {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &fakeAMI{ln: ln, banner: banner, handle: handle}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(func() {
		ln.Close()
		f.wg.Wait()
	})
	return f
}

func (f *fakeAMI) addr() string { return f.ln.Addr().String() }

func (f *fakeAMI) serve() {
	defer f.wg.Done()
	conn, err := f.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	w.WriteString(f.banner + "\r\n")
	w.Flush()

	r := textproto.NewReader(bufio.NewReader(conn))
	for {
		action, err := r.ReadMIMEHeader()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.actions = append(f.actions, action)
		f.mu.Unlock()

		if action.Get("Action") == "Logoff" {
			w.WriteString("Response: Goodbye\r\nActionID: " + action.Get("ActionID") + "\r\nMessage: Thanks for all the fish.\r\n\r\n")
			w.Flush()
			return
		}
		f.handle(action, w)
		w.Flush()
	}
}

func (f *fakeAMI) recorded() []textproto.MIMEHeader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]textproto.MIMEHeader(nil), f.actions...)
}

// standardAMI accepts any login and answers commands from outputs using the
// legacy "Response: Follows" framing when legacy is set, the "Output:"
// framing otherwise.
func standardAMI(outputs map[string]string, legacy bool) func(textproto.MIMEHeader, *bufio.Writer) {
	return func(action textproto.MIMEHeader, w *bufio.Writer) {
		id := action.Get("ActionID")
		switch action.Get("Action") {
		case "Login":
			w.WriteString("Response: Success\r\nActionID: " + id + "\r\nMessage: Authentication accepted\r\n\r\n")
		case "Command":
			out, ok := outputs[action.Get("Command")]
			if !ok {
				out = "No such command '" + action.Get("Command") + "' (type 'core show help' for other possible commands)"
			}
			if legacy {
				w.WriteString("Response: Follows\r\nPrivilege: Command\r\nActionID: " + id + "\r\n")
				w.WriteString(out + "\n--END COMMAND--\r\n\r\n")
				return
			}
			w.WriteString("Response: Success\r\nActionID: " + id + "\r\nMessage: Command output follows\r\n")
			for _, line := range strings.Split(out, "\n") {
				w.WriteString("Output: " + line + "\r\n")
			}
			w.WriteString("\r\n")
		default:
			w.WriteString("Response: Error\r\nActionID: " + id + "\r\nMessage: Invalid/unknown command\r\n\r\n")
		}
	}
}

// mockCommander answers commands from a map.
type mockCommander struct {
	outputs map[string]string
	err     error

	mu    sync.Mutex
	calls []string
}

func (m *mockCommander) Command(_ context.Context, command string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, command)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	out, ok := m.outputs[command]
	if !ok {
		return "No such command '" + command + "'", nil
	}
	return out, nil
}
