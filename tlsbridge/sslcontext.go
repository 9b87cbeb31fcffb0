// Package tlsbridge decouples a TLS engine from a non-blocking transport
// using a pair of in-memory membranes: ciphertext arriving off the
// network is fed into the read membrane, and ciphertext the engine wants
// to emit is drained from the write membrane back to the transport.
//
// Go's crypto/tls owns a blocking net.Conn rather than exposing a
// non-blocking BIO-style engine, so this package realizes the membranes
// as a net.Pipe() pair: one end is handed to crypto/tls (driven by a
// dedicated per-connection goroutine that may block freely), the other
// is owned by SecureConn, fed by OnRead and drained continuously by a
// background pump that forwards to the transport's send callback. OnRead
// never blocks the reactor thread; Send waits only until the pump has
// taken the ciphertext it produced.
//
// Grounded on original_source/src/ssl/SslConnection.cc and SslContext.cc
// for the membrane vocabulary, state machine and error classification,
// and on the teacher's https.go/transport/tls.go for certificate loading
// conventions.
package tlsbridge

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/ignis-web/ignis/config"
	"github.com/ignis-web/ignis/log"
)

// SslContext wraps an immutable *tls.Config built once at startup and
// shared, without locking, by every SecureConn — mirroring the distilled
// spec's "SslContext: immutable after init" shared-resource note.
type SslContext struct {
	tlsConfig *tls.Config
}

var protocolVersions = map[string]uint16{
	"TLS1.0": tls.VersionTLS10,
	"TLS1.1": tls.VersionTLS11,
	"TLS1.2": tls.VersionTLS12,
	"TLS1.3": tls.VersionTLS13,
}

// cipherSuiteNames maps the handful of OpenSSL-style cipher list tokens
// this module recognizes to their crypto/tls named suite. Entries with
// no mapping are logged and skipped, per SPEC_FULL §4.5.
var cipherSuiteNames = map[string]uint16{
	"ECDHE-RSA-AES128-GCM-SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-RSA-AES256-GCM-SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-CHACHA20-POLY1305":   tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	"ECDHE-ECDSA-AES128-GCM-SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-ECDSA-AES256-GCM-SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"AES128-GCM-SHA256":             tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"AES256-GCM-SHA384":             tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
}

// NewSslContext builds an SslContext from cfg. Certificate/key load
// failure is fatal at startup, per the distilled spec's §7 "Fatal at
// startup" clause — the caller is expected to abort the process on a
// non-nil error.
func NewSslContext(cfg config.Config, onSkippedCipher func(token string)) (*SslContext, error) {
	cert, err := loadCertificate(cfg.CertificateFile, cfg.PrivateKeyFile, cfg.CertificateChainFile)
	if err != nil {
		return nil, fmt.Errorf("tlsbridge: load certificate: %w", err)
	}

	minVersion, ok := protocolVersions[cfg.ProtocolVersion]
	if !ok {
		return nil, fmt.Errorf("tlsbridge: unrecognized protocol version %q", cfg.ProtocolVersion)
	}

	var suites []uint16
	for _, token := range splitCipherList(cfg.CipherList) {
		suite, ok := cipherSuiteNames[token]
		if !ok {
			if onSkippedCipher != nil {
				onSkippedCipher(token)
			}

			continue
		}

		suites = append(suites, suite)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
		CipherSuites: suites,
		// PreferServerCipherSuites has no effect below TLS 1.3 as of Go
		// 1.22 and crypto/tls always prefers the server's order at 1.3 —
		// kept unset deliberately; see SPEC_FULL §4.5.
		SessionTicketsDisabled: false,
	}

	// crypto/tls's ClientSessionCache is consulted only by tls.Client;
	// a tls.Server config has no analogous cache-size knob, resumption
	// there is always ticket-based and sized by the stdlib internally.
	// SessionCacheSize therefore has nothing to configure on this side —
	// flag it instead of silently ignoring it.
	if cfg.SessionCacheSize > 0 {
		log.Warnf("tlsbridge: SessionCacheSize=%d has no effect on a TLS server; crypto/tls exposes no server-side session cache, only SessionTicketsDisabled", cfg.SessionCacheSize)
	}

	return &SslContext{tlsConfig: tlsConfig}, nil
}

// loadCertificate loads the leaf certificate and key, optionally
// concatenating a chain file onto the certificate PEM first — grounded
// on the teacher's https.go tls.LoadX509KeyPair usage, extended with the
// manual chain-file concatenation the distilled spec's §6 calls for.
func loadCertificate(certFile, keyFile, chainFile string) (tls.Certificate, error) {
	if chainFile == "" {
		return tls.LoadX509KeyPair(certFile, keyFile)
	}

	certPEM, err := readAndConcat(certFile, chainFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	keyPEM, err := readFile(keyFile)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.X509KeyPair(certPEM, keyPEM)
}

func splitCipherList(raw string) []string {
	raw = strings.NewReplacer(",", ":").Replace(raw)

	var tokens []string
	for _, t := range strings.Split(raw, ":") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens = append(tokens, t)
		}
	}

	return tokens
}
