package keyexchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
	"github.com/esicorp/securetransfer/internal/utils"
)

type MessageType string

const (
	TypeHandshake MessageType = "HANDSHAKE"
	TypePublicKey MessageType = "PUBLIC_KEY"
	TypeAck       MessageType = "ACK"
	TypeError     MessageType = "ERROR"
)

const timestampLayout = "2006-01-02T15:04:05.000000"

// Message is the envelope of every exchange message. Field names are part
// of the wire format shared with existing installations.
type Message struct {
	Type      MessageType     `json:"tipo"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"datos"`
}

type HandshakeData struct {
	Hostname string `json:"hostname"`
	User     string `json:"usuario"`
	System   string `json:"sistema"`
}

func handshakeFrom(id utils.HostIdentity) HandshakeData {
	return HandshakeData{Hostname: id.Hostname, User: id.User, System: id.System}
}

type PublicKeyData struct {
	PublicKey string `json:"llave_publica"`
	Hostname  string `json:"hostname"`
	User      string `json:"usuario"`
}

type AckData struct {
	Status  string `json:"estado"`
	Message string `json:"mensaje"`
}

type ErrorData struct {
	Reason string `json:"razon"`
}

// channel sends and receives messages on one connection. A single decoder
// is kept so bytes read ahead of one message are not lost for the next.
type channel struct {
	conn net.Conn
	dec  *json.Decoder
	now  func() time.Time
}

func newChannel(conn net.Conn) *channel {
	return &channel{conn: conn, dec: json.NewDecoder(conn), now: time.Now}
}

// send writes one message as a single JSON value.
func (c *channel) send(t MessageType, data any, timeout time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b, err := json.Marshal(Message{Type: t, Timestamp: c.now().Format(timestampLayout), Data: raw})
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("sending %s: %w", t, err)
	}
	return nil
}

// recv reads the next message and decodes its payload into out. A peer
// ERROR becomes ErrPeerDeclined; anything other than want is ErrProtocol.
func (c *channel) recv(want MessageType, out any, timeout time.Duration) error {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}

	var msg Message
	if err := c.dec.Decode(&msg); err != nil {
		var ne net.Error
		switch {
		case errors.As(err, &ne) && ne.Timeout():
			return fmt.Errorf("%w: timed out waiting for %s", kerrors.ErrProtocol, want)
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: connection closed while waiting for %s", kerrors.ErrProtocol, want)
		default:
			return fmt.Errorf("%w: reading %s: %v", kerrors.ErrProtocol, want, err)
		}
	}

	if msg.Type == TypeError && want != TypeError {
		var e ErrorData
		_ = json.Unmarshal(msg.Data, &e)
		if e.Reason == "" {
			e.Reason = "no reason given"
		}
		return fmt.Errorf("%w: %s", kerrors.ErrPeerDeclined, e.Reason)
	}
	if msg.Type != want {
		return fmt.Errorf("%w: expected %s, got %q", kerrors.ErrProtocol, want, msg.Type)
	}
	if out != nil && len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, out); err != nil {
			return fmt.Errorf("%w: invalid %s payload: %v", kerrors.ErrProtocol, want, err)
		}
	}
	return nil
}

// abort tells the peer why the exchange stopped. Errors are ignored since
// the exchange has already failed.
func (c *channel) abort(reason string, timeout time.Duration) {
	_ = c.send(TypeError, ErrorData{Reason: reason}, timeout)
}
