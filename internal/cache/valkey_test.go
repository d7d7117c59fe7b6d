package cache

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeValkey speaks enough RESP2 to exercise the provider.
type fakeValkey struct {
	ln       net.Listener
	password string

	mu       sync.Mutex
	data     map[string]string
	commands []string
	// loading makes the next GETs fail as if the dataset were still loading.
	loading int
}

func startFakeValkey(t *testing.T, password string) *fakeValkey {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeValkey{ln: ln, password: password, data: make(map[string]string)}
	t.Cleanup(func() { _ = ln.Close() })
	go f.serve()
	return f
}

func (f *fakeValkey) addr() string { return f.ln.Addr().String() }

func (f *fakeValkey) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeValkey) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	authed := f.password == ""
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		cmd := strings.ToUpper(args[0])
		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.mu.Unlock()

		if cmd == "AUTH" {
			if args[len(args)-1] == f.password {
				authed = true
				io.WriteString(conn, "+OK\r\n")
			} else {
				io.WriteString(conn, "-WRONGPASS invalid password\r\n")
			}
			continue
		}
		if !authed {
			io.WriteString(conn, "-NOAUTH Authentication required\r\n")
			continue
		}
		io.WriteString(conn, f.exec(cmd, args[1:]))
	}
}

func (f *fakeValkey) exec(cmd string, args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch cmd {
	case "PING":
		return "+PONG\r\n"
	case "SELECT":
		return "+OK\r\n"
	case "GET":
		if f.loading > 0 {
			f.loading--
			return "-LOADING Valkey is loading the dataset in memory\r\n"
		}
		v, ok := f.data[args[0]]
		if !ok {
			return "$-1\r\n"
		}
		return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v)
	case "SET":
		f.data[args[0]] = args[1]
		return "+OK\r\n"
	case "DEL":
		_, existed := f.data[args[0]]
		delete(f.data, args[0])
		if existed {
			return ":1\r\n"
		}
		return ":0\r\n"
	default:
		return "-ERR unknown command\r\n"
	}
}

func (f *fakeValkey) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func readCommand(r *bufio.Reader) ([]string, error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(header[1:]))
	if err != nil {
		return nil, err
	}
	args := make([]string, n)
	for i := range args {
		sizeLine, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		size, err := strconv.Atoi(strings.TrimSpace(sizeLine[1:]))
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args[i] = string(buf[:size])
	}
	return args, nil
}

func TestValkeyProviderCommands(t *testing.T) {
	server := startFakeValkey(t, "")
	p, err := NewValkeyProvider(ValkeyConfig{Addr: server.addr()})
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	_, err = p.Get(ctx, "eeg:analysis:x")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, p.Set(ctx, "eeg:analysis:x", []byte("payload\r\nwith crlf"), time.Minute))
	got, err := p.Get(ctx, "eeg:analysis:x")
	require.NoError(t, err)
	assert.Equal(t, "payload\r\nwith crlf", string(got))

	require.NoError(t, p.Del(ctx, "eeg:analysis:x"))
	_, err = p.Get(ctx, "eeg:analysis:x")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestValkeyProviderAuthAndSelect(t *testing.T) {
	server := startFakeValkey(t, "s3cret")
	p, err := NewValkeyProvider(ValkeyConfig{Addr: server.addr(), Username: "eeg", Password: "s3cret", DB: 2})
	require.NoError(t, err)

	require.NoError(t, p.Set(context.Background(), "k", []byte("v"), 0))
	assert.Equal(t, []string{"AUTH", "SELECT", "PING", "AUTH", "SELECT", "SET"}, server.seen())
}

func TestValkeyProviderRejectsBadPassword(t *testing.T) {
	server := startFakeValkey(t, "s3cret")
	_, err := NewValkeyProvider(ValkeyConfig{Addr: server.addr(), Password: "wrong"})
	assert.ErrorContains(t, err, "WRONGPASS")
}

func TestValkeyProviderRequiresAddr(t *testing.T) {
	_, err := NewValkeyProvider(ValkeyConfig{})
	assert.Error(t, err)
}

func TestValkeyProviderCanceledContext(t *testing.T) {
	server := startFakeValkey(t, "")
	p, err := NewValkeyProvider(ValkeyConfig{Addr: server.addr()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValkeyProviderRetriesWhileLoading(t *testing.T) {
	server := startFakeValkey(t, "")
	p, err := NewValkeyProvider(ValkeyConfig{Addr: server.addr(), MaxRetries: 3})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, p.Set(ctx, "k", []byte("v"), 0))

	server.mu.Lock()
	server.loading = 2
	server.mu.Unlock()

	got, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestValkeyProviderGivesUpWhileLoading(t *testing.T) {
	server := startFakeValkey(t, "")
	p, err := NewValkeyProvider(ValkeyConfig{Addr: server.addr()})
	require.NoError(t, err)

	server.mu.Lock()
	server.loading = 1
	server.mu.Unlock()

	_, err = p.Get(context.Background(), "k")
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "LOADING", srvErr.Kind)
	assert.True(t, srvErr.Temporary())
}
