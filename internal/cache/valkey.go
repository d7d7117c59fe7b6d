package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyProvider keeps analysis results on a Valkey or Redis compatible
// server. Each call opens its own connection and pipelines the AUTH and SELECT
// handshake in front of the command.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// ValkeyConfig holds connection parameters for the Valkey server.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxRetries counts attempts, so 1 means no retry.
	MaxRetries int
	TLS        bool
}

func (c *ValkeyConfig) withDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 2 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 500 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 500 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
}

// NewValkeyProvider pings the server so bad credentials fail at startup
// rather than on the first analysis.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey: addr is required")
	}
	cfg.withDefaults()
	p := &ValkeyProvider{cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout+cfg.ReadTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return nil, fmt.Errorf("valkey %s: %w", cfg.Addr, err)
	}
	return p, nil
}

// Get returns ErrCacheMiss when key is absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := p.exec(ctx, newCommand("GET", []byte(key)))
	if err != nil {
		return nil, err
	}
	switch r.kind {
	case kindNil:
		return nil, ErrCacheMiss
	case kindBulk:
		return r.data, nil
	}
	return nil, unexpected("GET", r)
}

// Set stores value with a millisecond TTL. A zero TTL keeps the key.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := [][]byte{[]byte(key), value}
	if ms := ttl.Milliseconds(); ms > 0 {
		args = append(args, []byte("PX"), strconv.AppendInt(nil, ms, 10))
	}
	r, err := p.exec(ctx, newCommand("SET", args...))
	if err != nil {
		return err
	}
	if !r.ok() {
		return unexpected("SET", r)
	}
	return nil
}

func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	r, err := p.exec(ctx, newCommand("DEL", []byte(key)))
	if err != nil {
		return err
	}
	if r.kind != kindInt {
		return unexpected("DEL", r)
	}
	return nil
}

// Ping checks the server answers PONG.
func (p *ValkeyProvider) Ping(ctx context.Context) error {
	r, err := p.exec(ctx, newCommand("PING"))
	if err != nil {
		return err
	}
	if r.kind != kindSimple || string(r.data) != "PONG" {
		return unexpected("PING", r)
	}
	return nil
}

// Close is a no-op; connections are not pooled.
func (p *ValkeyProvider) Close() error { return nil }

// exec runs c, retrying network timeouts and temporary server errors with
// exponential backoff.
func (p *ValkeyProvider) exec(ctx context.Context, c command) (reply, error) {
	var err error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(retryDelay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return reply{}, ctx.Err()
			case <-timer.C:
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return reply{}, ctxErr
		}

		var r reply
		if r, err = p.session(ctx, c); err == nil {
			return r, nil
		}
		if !retryable(err) {
			return reply{}, err
		}
	}
	return reply{}, err
}

// session writes the handshake and c in one batch and reads every reply.
func (p *ValkeyProvider) session(ctx context.Context, c command) (reply, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return reply{}, err
	}
	defer conn.Close()

	batch := append(p.handshake(), c)
	var buf []byte
	for _, cmd := range batch {
		buf = appendCommand(buf, cmd)
	}
	if err := conn.SetWriteDeadline(deadline(ctx, p.cfg.WriteTimeout)); err != nil {
		return reply{}, err
	}
	if _, err := conn.Write(buf); err != nil {
		return reply{}, err
	}

	if err := conn.SetReadDeadline(deadline(ctx, p.cfg.ReadTimeout)); err != nil {
		return reply{}, err
	}
	br := bufio.NewReader(conn)
	for _, cmd := range batch[:len(batch)-1] {
		r, err := readReply(br)
		if err != nil {
			return reply{}, err
		}
		if err := r.err(); err != nil {
			return reply{}, fmt.Errorf("%s: %w", strings.ToLower(cmd.name()), err)
		}
		if !r.ok() {
			return reply{}, unexpected(cmd.name(), r)
		}
	}

	r, err := readReply(br)
	if err != nil {
		return reply{}, err
	}
	if err := r.err(); err != nil {
		return reply{}, err
	}
	return r, nil
}

func (p *ValkeyProvider) handshake() []command {
	var cmds []command
	switch {
	case p.cfg.Password != "" && p.cfg.Username != "":
		cmds = append(cmds, newCommand("AUTH", []byte(p.cfg.Username), []byte(p.cfg.Password)))
	case p.cfg.Password != "":
		cmds = append(cmds, newCommand("AUTH", []byte(p.cfg.Password)))
	}
	if p.cfg.DB > 0 {
		cmds = append(cmds, newCommand("SELECT", []byte(strconv.Itoa(p.cfg.DB))))
	}
	return cmds
}

func (p *ValkeyProvider) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: p.cfg.DialTimeout}
	if !p.cfg.TLS {
		return dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	host, _, err := net.SplitHostPort(p.cfg.Addr)
	if err != nil {
		host = p.cfg.Addr
	}
	td := &tls.Dialer{
		NetDialer: dialer,
		Config:    &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host},
	}
	return td.DialContext(ctx, "tcp", p.cfg.Addr)
}

// deadline is now+d, or the context deadline when that comes first.
func deadline(ctx context.Context, d time.Duration) time.Time {
	t := time.Now().Add(d)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(t) {
		return ctxDeadline
	}
	return t
}

func retryDelay(attempt int) time.Duration {
	return 25 * time.Millisecond << (attempt - 1)
}

func retryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var srvErr *ServerError
	return errors.As(err, &srvErr) && srvErr.Temporary()
}

func unexpected(cmd string, r reply) error {
	return fmt.Errorf("valkey: unexpected %s reply %c%s", cmd, r.kind, r.data)
}
