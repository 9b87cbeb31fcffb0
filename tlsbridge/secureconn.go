package tlsbridge

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	ierrors "github.com/ignis-web/ignis/errors"
	"github.com/ignis-web/ignis/log"
)

// TLSState is the SecureConn lifecycle state.
type TLSState int32

const (
	Handshake TLSState = iota
	Established
	Error
)

func (s TLSState) String() string {
	switch s {
	case Handshake:
		return "Handshake"
	case Established:
		return "Established"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ErrorClass is the engine error taxonomy the bridge classifies every
// crypto/tls error into.
type ErrorClass int

const (
	None ErrorClass = iota
	WantRead
	WantWrite
	Syscall
	Protocol
	Unknown
)

// ErrNotEstablished is returned by Send before the handshake completes.
var ErrNotEstablished = errors.New("tlsbridge: send before handshake established")

// SecureConn bridges a non-blocking transport and a blocking crypto/tls
// engine. OnRead/Send are safe to call from the connection's owning
// reactor goroutine. OnRead never blocks; Send writes through the
// synchronous pipe and returns once the drain pump has taken all of the
// resulting ciphertext. The engine itself runs on a dedicated goroutine
// started by NewSecureConn.
type SecureConn struct {
	sendFn      func([]byte) error
	onPlaintext func([]byte, time.Time)

	engineConn net.Conn
	bridgeConn net.Conn
	tlsConn    *tls.Conn
	inbound    *byteQueue

	state   atomic.Int32
	closed  atomic.Bool
	closeMu sync.Mutex
}

// NewSecureConn creates a SecureConn over ctx and starts its background
// goroutines: the feeder (drains OnRead's queue into the pipe), the
// drainer (continuously reads ciphertext the engine emits and forwards
// it to sendFn — the "unconditional drain" requirement, satisfied by
// construction rather than by an explicit call after every step), and
// the engine itself (handshake, then a plaintext Read loop).
//
// sendFn must be safe to call concurrently with the goroutine that calls
// OnRead/Send — reactor.Connection.Send already is.
func NewSecureConn(ctx *SslContext, sendFn func([]byte) error, onPlaintext func([]byte, time.Time)) *SecureConn {
	engineConn, bridgeConn := net.Pipe()

	sc := &SecureConn{
		sendFn:      sendFn,
		onPlaintext: onPlaintext,
		engineConn:  engineConn,
		bridgeConn:  bridgeConn,
		inbound:     newByteQueue(),
	}
	sc.tlsConn = tls.Server(engineConn, ctx.tlsConfig)

	go sc.feedLoop()
	go sc.drainLoop()
	go sc.engineLoop()

	return sc
}

// State reports the current lifecycle state.
func (sc *SecureConn) State() TLSState {
	return TLSState(sc.state.Load())
}

func (sc *SecureConn) setState(s TLSState) {
	sc.state.Store(int32(s))
}

// OnRead appends ciphertext received from the network into the read
// membrane. Never blocks.
func (sc *SecureConn) OnRead(ciphertext []byte) {
	if len(ciphertext) == 0 {
		return
	}

	cp := make([]byte, len(ciphertext))
	copy(cp, ciphertext)
	sc.inbound.push(cp)
}

// Send encrypts plaintext and hands the resulting ciphertext to sendFn.
// Forbidden unless the handshake has completed.
func (sc *SecureConn) Send(plaintext []byte) error {
	if sc.State() != Established {
		return ErrNotEstablished
	}

	_, err := sc.tlsConn.Write(plaintext)
	return err
}

// Close tears down both membrane ends and unblocks every background
// goroutine.
func (sc *SecureConn) Close() error {
	sc.closeMu.Lock()
	defer sc.closeMu.Unlock()

	if sc.closed.Swap(true) {
		return nil
	}

	sc.inbound.close()
	_ = sc.bridgeConn.Close()
	_ = sc.engineConn.Close()
	return nil
}

// feedLoop drains OnRead's queue into the pipe's bridge end, one chunk
// at a time. It may block on Write (the pipe is synchronous) but only
// this goroutine, never the caller of OnRead.
func (sc *SecureConn) feedLoop() {
	for {
		chunk, ok := sc.inbound.pop()
		if !ok {
			return
		}

		if _, err := sc.bridgeConn.Write(chunk); err != nil {
			return
		}
	}
}

// drainLoop continuously reads whatever ciphertext the engine emits on
// the bridge end and forwards it to the transport — the write membrane,
// realized as a permanently-running pump rather than an explicit
// per-step drain call, which trivially satisfies "drain after every
// write" by always draining.
func (sc *SecureConn) drainLoop() {
	buf := make([]byte, 4096)

	for {
		n, err := sc.bridgeConn.Read(buf)
		if n > 0 {
			if sendErr := sc.sendFn(append([]byte(nil), buf[:n]...)); sendErr != nil {
				return
			}
		}

		if err != nil {
			return
		}
	}
}

// engineLoop runs the blocking handshake followed by a plaintext read
// loop, entirely on its own goroutine so neither ever touches the
// reactor thread.
func (sc *SecureConn) engineLoop() {
	if err := sc.tlsConn.Handshake(); err != nil {
		sc.fail(classify(err))
		return
	}

	sc.setState(Established)

	buf := make([]byte, 4096)
	for {
		n, err := sc.tlsConn.Read(buf)
		if n > 0 {
			plaintext := make([]byte, n)
			copy(plaintext, buf[:n])
			sc.onPlaintext(plaintext, time.Now())
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				// peer shutdown: not a protocol failure, just a closed
				// connection. Leave the state as Established; the
				// caller's OnClose is responsible for tearing down.
				return
			}

			sc.fail(classify(err))
			return
		}
	}
}

func (sc *SecureConn) fail(class ErrorClass) {
	if class == WantRead || class == WantWrite {
		log.Debugf("tlsbridge: %s (class=%v)", ierrors.ErrTLSWantMore, class)
		return
	}

	sc.setState(Error)
	log.Errorf("tlsbridge: %s (class=%v)", ierrors.ErrTLSProtocol, class)
}

// classify maps a crypto/tls (or net/io) error to the bridge's error
// taxonomy. Grounded on original_source/src/ssl/SslConnection.cc's
// engine-error switch, re-expressed over Go's error types since
// crypto/tls has no WANT_READ/WANT_WRITE distinct from a closed pipe.
func classify(err error) ErrorClass {
	if err == nil {
		return None
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return WantRead
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return Syscall
	}

	var headerErr tls.RecordHeaderError
	if errors.As(err, &headerErr) {
		return Protocol
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return Protocol
	}

	var certInvalid x509.CertificateInvalidError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	if errors.As(err, &certInvalid) || errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) {
		return Protocol
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Syscall
	}

	return Unknown
}
