package asyncrt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
	"golang.org/x/net/idna"
)

// ClientEncryption configures a client-side TLS upgrade (spec component H,
// "ClientEncryption" in original_source/src/tcp.c). It is immutable: each
// With* method returns a modified copy.
type ClientEncryption struct {
	allowSelfSigned bool
	verifyDepth     int
	peerName        string
	rootCAs         *x509.CertPool
}

// NewClientEncryption returns a ClientEncryption with the original's default
// verify depth.
func NewClientEncryption() *ClientEncryption { return &ClientEncryption{verifyDepth: 9} }

func (c *ClientEncryption) WithAllowSelfSigned(allow bool) *ClientEncryption {
	cp := *c
	cp.allowSelfSigned = allow
	return &cp
}

func (c *ClientEncryption) WithVerifyDepth(depth int) *ClientEncryption {
	cp := *c
	cp.verifyDepth = depth
	return &cp
}

// WithPeerName sets the hostname verified against the server's certificate,
// normalizing it to ASCII (punycode) via golang.org/x/net/idna first, the
// same SNI normalization step a browser applies before the handshake.
func (c *ClientEncryption) WithPeerName(name string) *ClientEncryption {
	cp := *c
	if ascii, err := idna.Lookup.ToASCII(name); err == nil {
		name = ascii
	}
	cp.peerName = name
	return &cp
}

func (c *ClientEncryption) WithRootCAs(pool *x509.CertPool) *ClientEncryption {
	cp := *c
	cp.rootCAs = pool
	return &cp
}

func (c *ClientEncryption) tlsConfig() *tls.Config {
	peerName := c.peerName
	cfg := &tls.Config{
		ServerName:         peerName,
		InsecureSkipVerify: true, // verification is done in VerifyConnection below
		RootCAs:            c.rootCAs,
	}
	cfg.VerifyConnection = func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("asyncrt: server presented no certificate")
		}
		if c.allowSelfSigned {
			if peerName == "" {
				return nil
			}
			return verifyHostname(cs.PeerCertificates[0], peerName)
		}
		opts := x509.VerifyOptions{
			Roots:         c.rootCAs,
			Intermediates: x509.NewCertPool(),
		}
		for _, cert := range cs.PeerCertificates[1:] {
			opts.Intermediates.AddCert(cert)
		}
		chains, err := cs.PeerCertificates[0].Verify(opts)
		if err != nil {
			return &SocketError{Op: "verify", Addr: peerName, Err: err}
		}
		if c.verifyDepth > 0 && shortestChain(chains) > c.verifyDepth {
			return &SocketError{Op: "verify", Addr: peerName, Err: fmt.Errorf("certificate chain exceeds verify depth %d", c.verifyDepth)}
		}
		if peerName == "" {
			return nil
		}
		return verifyHostname(cs.PeerCertificates[0], peerName)
	}
	return cfg
}

// ServerEncryption configures a server-side TLS listener identity (spec
// component H, "ServerEncryption"). Immutable like ClientEncryption.
type ServerEncryption struct {
	certs       []tls.Certificate
	defaultCert *tls.Certificate
}

func NewServerEncryption() *ServerEncryption { return &ServerEncryption{} }

// WithDefaultCertificate sets the certificate served when SNI doesn't match
// any of WithCertificate's entries.
func (s *ServerEncryption) WithDefaultCertificate(certPEM, keyPEM []byte) (*ServerEncryption, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	cp := *s
	cp.defaultCert = &cert
	return &cp, nil
}

// WithCertificate adds an SNI-selectable certificate.
func (s *ServerEncryption) WithCertificate(certPEM, keyPEM []byte) (*ServerEncryption, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	cp := *s
	cp.certs = append(append([]tls.Certificate{}, s.certs...), cert)
	return &cp, nil
}

func (s *ServerEncryption) tlsConfig() *tls.Config {
	cfg := &tls.Config{Certificates: s.certs}
	if s.defaultCert != nil {
		cfg.Certificates = append(cfg.Certificates, *s.defaultCert)
		def := s.defaultCert
		cfg.GetCertificate = func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
			for i := range s.certs {
				if matchesServerName(&s.certs[i], chi.ServerName) {
					return &s.certs[i], nil
				}
			}
			return def, nil
		}
	}
	return cfg
}

func matchesServerName(cert *tls.Certificate, serverName string) bool {
	if serverName == "" || cert.Leaf == nil {
		return false
	}
	names, err := parseSANNames(cert.Leaf)
	if err != nil {
		names = cert.Leaf.DNSNames
	}
	for _, n := range names {
		if matchWildcard(n, serverName) {
			return true
		}
	}
	return false
}

// encryptClient upgrades sock's connection to TLS as a client, suspending
// self across the handshake.
func (s *Socket) encryptClient(self suspender, enc *ClientEncryption) error {
	return s.handshake(self, func() *tls.Conn { return tls.Client(s.conn, enc.tlsConfig()) })
}

// encryptServer upgrades sock's connection to TLS as a server, suspending
// self across the handshake.
func (s *Socket) encryptServer(self suspender, enc *ServerEncryption) error {
	return s.handshake(self, func() *tls.Conn { return tls.Server(s.conn, enc.tlsConfig()) })
}

func (s *Socket) handshake(self suspender, build func() *tls.Conn) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.mu.Unlock()

	tlsConn := build()
	_, err := self.Await(func(op *Op) {
		go func() {
			if e := tlsConn.HandshakeContext(context.Background()); e != nil {
				op.Fail(&SocketError{Op: "verify", Err: e})
				return
			}
			op.Resolve(struct{}{})
		}()
	})
	if err != nil {
		return err
	}
	s.conn = tlsConn
	return nil
}

// Encrypt upgrades an already-connected client Socket to TLS.
func (s *Socket) Encrypt(self suspender, enc *ClientEncryption) error {
	return s.encryptClient(self, enc)
}

var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// parseSANNames walks cert's raw SubjectAltName extension with cryptobyte
// rather than trusting only the stdlib-precomputed DNSNames, mirroring
// original_source/src/tcp.c's ssl_check_san_names manual SAN walk.
func parseSANNames(cert *x509.Certificate) ([]string, error) {
	for _, ext := range cert.Extensions {
		if !ext.Id.Equal(oidSubjectAltName) {
			continue
		}
		return decodeSANExtension(ext.Value)
	}
	return cert.DNSNames, nil
}

const sanDNSNameTag = 2 // context-specific primitive [2] dNSName

func decodeSANExtension(der []byte) ([]string, error) {
	var names []string
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return nil, errors.New("asyncrt: malformed SubjectAltName extension")
	}
	for !seq.Empty() {
		var raw cryptobyte.String
		var tag cbasn1.Tag
		if !seq.ReadAnyASN1(&raw, &tag) {
			return nil, errors.New("asyncrt: malformed SubjectAltName entry")
		}
		if tag == cbasn1.Tag(0x80|sanDNSNameTag) {
			names = append(names, string(raw))
		}
	}
	return names, nil
}

// matchWildcard reports whether host matches pattern, honoring at most one
// leftmost "*" label wildcard and rejecting a wildcard that spans more than
// one label — the same check original_source/src/tcp.c applies before
// falling back to a literal comparison.
func matchWildcard(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	host = strings.ToLower(host)

	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		return pattern == host
	}
	if strings.Contains(pattern[:star], ".") {
		return false
	}

	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(host) < len(prefix)+len(suffix) {
		return false
	}
	if !strings.HasPrefix(host, prefix) || !strings.HasSuffix(host, suffix) {
		return false
	}
	mid := host[len(prefix) : len(host)-len(suffix)]
	return !strings.Contains(mid, ".")
}

func shortestChain(chains [][]*x509.Certificate) int {
	shortest := -1
	for _, chain := range chains {
		if shortest < 0 || len(chain) < shortest {
			shortest = len(chain)
		}
	}
	return shortest
}

func verifyHostname(cert *x509.Certificate, peerName string) error {
	names, err := parseSANNames(cert)
	if err != nil {
		names = cert.DNSNames
	}
	for _, n := range names {
		if matchWildcard(n, peerName) {
			return nil
		}
	}
	if matchWildcard(cert.Subject.CommonName, peerName) {
		return nil
	}
	return &SocketError{Op: "verify", Addr: peerName, Err: fmt.Errorf("certificate does not match %q", peerName)}
}
