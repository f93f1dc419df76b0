package transfer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	kerrors "github.com/esicorp/securetransfer/internal/errors"
)

// Wire tokens. Each text message is one write on the connection.
const (
	Separator  = "<SEPARATOR>"
	CodePrefix = "CODE:"
	MsgOK      = "OK"
	MsgFail    = "FAIL"
	MsgReady   = "READY"
)

const (
	DefaultPort       = 5000
	DefaultBufferSize = 4096

	// DefaultIOTimeout bounds each handshake read and each payload chunk.
	DefaultIOTimeout = 60 * time.Second

	acceptPollInterval = time.Second
)

// State tracks how far a sender got through the handshake.
type State int

const (
	StateConnecting State = iota
	StateAuthSent
	StateAuthAcked
	StateMetadataSent
	StateTransferReady
	StateStreaming
	StateDone
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthSent:
		return "AUTH_SENT"
	case StateAuthAcked:
		return "AUTH_ACKED"
	case StateMetadataSent:
		return "METADATA_SENT"
	case StateTransferReady:
		return "TRANSFER_READY"
	case StateStreaming:
		return "STREAMING"
	case StateDone:
		return "DONE"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Metadata is announced by the sender before any payload byte.
type Metadata struct {
	Filename  string
	Size      int64
	SessionID string
}

func (m Metadata) Encode() string {
	return m.Filename + Separator + strconv.FormatInt(m.Size, 10) + Separator + m.SessionID
}

// ParseMetadata splits a metadata message into its three fields.
func ParseMetadata(msg string) (Metadata, error) {
	parts := strings.Split(msg, Separator)
	if len(parts) != 3 {
		return Metadata{}, fmt.Errorf("%w: metadata has %d fields", kerrors.ErrProtocol, len(parts))
	}
	size, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || size < 0 {
		return Metadata{}, fmt.Errorf("%w: invalid size %q", kerrors.ErrProtocol, parts[1])
	}
	if parts[0] == "" || parts[2] == "" {
		return Metadata{}, fmt.Errorf("%w: empty filename or session id", kerrors.ErrProtocol)
	}
	return Metadata{Filename: parts[0], Size: size, SessionID: parts[2]}, nil
}

// readMessage performs a single read, matching the peer's single write.
func readMessage(conn net.Conn, bufSize int, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	buf := make([]byte, bufSize)
	n, err := conn.Read(buf)
	if n > 0 {
		return string(buf[:n]), nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: connection closed by peer", kerrors.ErrProtocol)
	}
	return "", err
}

func writeMessage(conn net.Conn, msg string, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	_, err := io.WriteString(conn, msg)
	return err
}

func bufferSize(n int) int {
	if n <= 0 {
		return DefaultBufferSize
	}
	return n
}

func ioTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultIOTimeout
	}
	return d
}
