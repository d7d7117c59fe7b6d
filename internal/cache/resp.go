package cache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type replyKind byte

const (
	kindSimple replyKind = '+'
	kindError  replyKind = '-'
	kindInt    replyKind = ':'
	kindBulk   replyKind = '$'
	kindNil    replyKind = '_'
)

type reply struct {
	kind replyKind
	data []byte
}

func (r reply) ok() bool {
	return r.kind == kindSimple && bytes.EqualFold(r.data, []byte("OK"))
}

// err returns the server error carried by an error reply, or nil.
func (r reply) err() error {
	if r.kind != kindError {
		return nil
	}
	kind, msg, _ := strings.Cut(string(r.data), " ")
	return &ServerError{Kind: kind, Message: msg}
}

// ServerError is an error reply such as WRONGPASS or LOADING.
type ServerError struct {
	Kind    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "valkey: " + e.Kind
	}
	return "valkey: " + e.Kind + " " + e.Message
}

// Temporary reports whether the server may accept the same command shortly.
func (e *ServerError) Temporary() bool {
	switch e.Kind {
	case "LOADING", "BUSY", "TRYAGAIN", "MASTERDOWN":
		return true
	}
	return false
}

type command [][]byte

func newCommand(name string, args ...[]byte) command {
	return append(command{[]byte(name)}, args...)
}

func (c command) name() string { return string(c[0]) }

// appendCommand encodes c as a RESP array of bulk strings.
func appendCommand(buf []byte, c command) []byte {
	buf = append(buf, '*')
	buf = strconv.AppendInt(buf, int64(len(c)), 10)
	buf = append(buf, '\r', '\n')
	for _, arg := range c {
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(arg)), 10)
		buf = append(buf, '\r', '\n')
		buf = append(buf, arg...)
		buf = append(buf, '\r', '\n')
	}
	return buf
}

// readReply decodes one RESP2 reply. Error replies come back as values; the
// returned error is reserved for I/O and framing problems.
func readReply(r *bufio.Reader) (reply, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return reply{}, err
	}
	if len(line) < 3 || line[len(line)-2] != '\r' {
		return reply{}, fmt.Errorf("valkey: malformed reply line %q", line)
	}
	kind, body := replyKind(line[0]), line[1:len(line)-2]

	switch kind {
	case kindSimple, kindError, kindInt:
		return reply{kind: kind, data: body}, nil
	case kindNil:
		return reply{kind: kindNil}, nil
	case kindBulk:
		size, err := strconv.Atoi(string(body))
		if err != nil {
			return reply{}, fmt.Errorf("valkey: bulk length %q: %w", body, err)
		}
		if size < 0 {
			return reply{kind: kindNil}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return reply{}, err
		}
		if !bytes.HasSuffix(buf, []byte("\r\n")) {
			return reply{}, errors.New("valkey: bulk string not terminated by CRLF")
		}
		return reply{kind: kindBulk, data: buf[:size]}, nil
	default:
		return reply{}, fmt.Errorf("valkey: unexpected reply prefix %q", line[0])
	}
}
