// Package smtptest runs an in-process SMTP relay for tests.
package smtptest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

// Relay speaks just enough SMTP for net/smtp and records what it receives.
type Relay struct {
	ln         net.Listener
	rejectAuth bool
	// starttls advertises STARTTLS without supporting it.
	starttls bool

	mu       sync.Mutex
	authed   bool
	rcpts    []string
	messages []string
}

// NewRelay listens on 127.0.0.1 over plain TCP. With rejectAuth every AUTH gets a 535.
func NewRelay(t testing.TB, rejectAuth bool) *Relay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := &Relay{ln: ln, rejectAuth: rejectAuth}
	go r.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return r
}

// NewTLSRelay serves SMTP over TLS from the first byte, like port 465, with a
// self-signed certificate.
func NewTLSRelay(t testing.TB) *Relay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{selfSignedCert(t)}}
	r := &Relay{ln: tls.NewListener(ln, cfg), starttls: true}
	go r.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return r
}

func (r *Relay) Port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *Relay) Authed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authed
}

func (r *Relay) Recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rcpts...)
}

// Messages returns each DATA payload with lines joined by "\n".
func (r *Relay) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *Relay) serve() {
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}
		go r.handle(conn)
	}
}

func (r *Relay) handle(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP fake")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.Fields(line + " x")[0])
		switch verb {
		case "EHLO":
			_ = tp.PrintfLine("250-localhost")
			_ = tp.PrintfLine("250-8BITMIME")
			if r.starttls {
				_ = tp.PrintfLine("250-STARTTLS")
			}
			_ = tp.PrintfLine("250 AUTH PLAIN")
		case "HELO", "NOOP", "RSET":
			_ = tp.PrintfLine("250 OK")
		case "AUTH":
			if r.rejectAuth {
				_ = tp.PrintfLine("535 5.7.8 Username and Password not accepted")
				continue
			}
			r.mu.Lock()
			r.authed = true
			r.mu.Unlock()
			_ = tp.PrintfLine("235 2.7.0 Accepted")
		case "*":
			_ = tp.PrintfLine("501 cancelled")
		case "MAIL":
			_ = tp.PrintfLine("250 OK")
		case "RCPT":
			r.mu.Lock()
			r.rcpts = append(r.rcpts, line)
			r.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.messages = append(r.messages, strings.Join(lines, "\n"))
			r.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("500 unrecognized")
		}
	}
}

func selfSignedCert(t testing.TB) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "relay.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"relay.test"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}
