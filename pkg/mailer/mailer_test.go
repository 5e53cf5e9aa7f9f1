package mailer

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNestsAlternativeBodiesBesideAttachment(t *testing.T) {
	raw, err := Build("greetings@corp.test", Message{
		To:       "ivan@corp.test",
		Subject:  "С днём рождения!",
		TextBody: "Happy birthday",
		HTMLBody: "<p>Happy birthday</p>",
		Attachments: []Attachment{
			{Filename: "card.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	}, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	to, err := mail.ParseAddress(parsed.Header.Get("To"))
	require.NoError(t, err)
	assert.Equal(t, "ivan@corp.test", to.Address)

	decoder := new(mime.WordDecoder)
	subject, err := decoder.DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "С днём рождения!", subject)
	assert.Contains(t, parsed.Header.Get("Message-ID"), "@corp.test>")

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	var (
		topLevel    []string
		alternative []string
		filenames   []string
	)
	reader := multipart.NewReader(parsed.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		partType, partParams, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		require.NoError(t, err)
		topLevel = append(topLevel, partType)
		if name := part.FileName(); name != "" {
			filenames = append(filenames, name)
		}
		if partType != "multipart/alternative" {
			continue
		}
		nested := multipart.NewReader(part, partParams["boundary"])
		for {
			inner, err := nested.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			innerType, _, err := mime.ParseMediaType(inner.Header.Get("Content-Type"))
			require.NoError(t, err)
			alternative = append(alternative, innerType)
		}
	}
	assert.Equal(t, []string{"multipart/alternative", "application/pdf"}, topLevel)
	assert.Equal(t, []string{"text/plain", "text/html"}, alternative)
	assert.Equal(t, []string{"card.pdf"}, filenames)
}

func TestSendValidatesInput(t *testing.T) {
	sender := NewSMTPSender()
	err := sender.Send(context.Background(), Settings{}, Message{To: "a@b.test"})
	assert.Error(t, err)

	err = sender.Send(context.Background(), Settings{Host: "localhost", From: "x@y.test"}, Message{})
	assert.Error(t, err)
}

func TestResolveTLSMode(t *testing.T) {
	assert.Equal(t, TLSImplicit, resolveTLSMode(TLSAuto, 465))
	assert.Equal(t, TLSOpportunistic, resolveTLSMode(TLSAuto, 587))
	assert.Equal(t, TLSStartTLS, resolveTLSMode(TLSStartTLS, 465))
	assert.Equal(t, TLSImplicit, ParseTLSMode(" SSL "))
	assert.Equal(t, TLSNone, ParseTLSMode("none"))
	assert.Equal(t, TLSAuto, ParseTLSMode("bogus"))
}

func TestSendOverImplicitTLS(t *testing.T) {
	certs := newTestCertificates(t)
	listener, err := tls.Listen("tcp", "127.0.0.1:0", certs.server)
	require.NoError(t, err)
	server := startFakeSMTP(t, listener, nil)

	sender := certs.sender()
	err = sender.Send(context.Background(), Settings{
		Host:     "127.0.0.1",
		Port:     listener.Addr().(*net.TCPAddr).Port,
		User:     "mailer",
		Password: "secret",
		From:     "greetings@corp.test",
		TLSMode:  TLSImplicit,
		Timeout:  5 * time.Second,
	}, greetingMessage())
	require.NoError(t, err)

	session := server.wait(t)
	assert.True(t, session.secureAtMail)
	assert.Equal(t, "\x00mailer\x00secret", session.auth)
	assert.Contains(t, session.commands, "MAIL FROM:<greetings@corp.test>")
	assert.Contains(t, session.commands, "RCPT TO:<ivan@corp.test>")
	assertGreetingPayload(t, session.data)
}

func TestSendUpgradesWithStartTLS(t *testing.T) {
	certs := newTestCertificates(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := startFakeSMTP(t, listener, certs.server)

	sender := certs.sender()
	err = sender.Send(context.Background(), Settings{
		Host:     "127.0.0.1",
		Port:     listener.Addr().(*net.TCPAddr).Port,
		User:     "mailer",
		Password: "secret",
		From:     "greetings@corp.test",
		TLSMode:  TLSStartTLS,
		Timeout:  5 * time.Second,
	}, greetingMessage())
	require.NoError(t, err)

	session := server.wait(t)
	assert.Contains(t, session.commands, "STARTTLS")
	assert.True(t, session.secureAtMail)
	assert.Equal(t, "\x00mailer\x00secret", session.auth)
	assertGreetingPayload(t, session.data)
}

func TestSendPlainWhenServerOffersNoTLS(t *testing.T) {
	certs := newTestCertificates(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := startFakeSMTP(t, listener, nil)

	sender := certs.sender()
	err = sender.Send(context.Background(), Settings{
		Host:    "127.0.0.1",
		Port:    listener.Addr().(*net.TCPAddr).Port,
		From:    "greetings@corp.test",
		Timeout: 5 * time.Second,
	}, greetingMessage())
	require.NoError(t, err)

	session := server.wait(t)
	assert.False(t, session.secureAtMail)
	assert.Empty(t, session.auth)
	assert.NotContains(t, session.commands, "STARTTLS")
	assertGreetingPayload(t, session.data)
}

func greetingMessage() Message {
	return Message{
		To:       "ivan@corp.test",
		Subject:  "Happy birthday, Ivan!",
		TextBody: "Happy birthday",
		HTMLBody: "<p>Happy birthday</p>",
		Attachments: []Attachment{
			{Filename: "birthday-card.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	}
}

func assertGreetingPayload(t *testing.T, data string) {
	t.Helper()
	parsed, err := mail.ReadMessage(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Happy birthday, Ivan!", parsed.Header.Get("Subject"))
	assert.Contains(t, data, "birthday-card.pdf")
	assert.Contains(t, data, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")))
}

type testCertificates struct {
	server *tls.Config
	roots  *x509.CertPool
}

func newTestCertificates(t *testing.T) testCertificates {
	t.Helper()
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	roots := x509.NewCertPool()
	roots.AddCert(srv.Certificate())
	return testCertificates{
		server: &tls.Config{Certificates: srv.TLS.Certificates, MinVersion: tls.VersionTLS12},
		roots:  roots,
	}
}

func (c testCertificates) sender() *SMTPSender {
	sender := NewSMTPSender()
	sender.tlsConfig = func(host string) *tls.Config {
		cfg := tlsConfig(host)
		cfg.RootCAs = c.roots
		return cfg
	}
	return sender
}

type smtpSession struct {
	commands     []string
	auth         string
	data         string
	secureAtMail bool
}

type fakeSMTP struct {
	listener net.Listener
	startTLS *tls.Config

	mu      sync.Mutex
	session smtpSession
	done    chan struct{}
}

// startFakeSMTP accepts a single connection. A non-nil startTLS config enables the STARTTLS extension.
func startFakeSMTP(t *testing.T, listener net.Listener, startTLS *tls.Config) *fakeSMTP {
	t.Helper()
	f := &fakeSMTP{listener: listener, startTLS: startTLS, done: make(chan struct{})}
	t.Cleanup(func() { _ = listener.Close() })
	go func() {
		defer close(f.done)
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close() //nolint:errcheck
		_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
		f.serve(conn)
	}()
	return f
}

func (f *fakeSMTP) wait(t *testing.T) smtpSession {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(10 * time.Second):
		t.Fatal("smtp session did not finish")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeSMTP) serve(conn net.Conn) {
	_, secure := conn.(*tls.Conn)
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 fake.test ESMTP ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		f.record(func(s *smtpSession) {
			if verb == "AUTH" {
				s.commands = append(s.commands, "AUTH")
				return
			}
			s.commands = append(s.commands, line)
		})

		switch verb {
		case "EHLO":
			reply := []string{"250-fake.test", "250-AUTH PLAIN LOGIN"}
			if f.startTLS != nil && !secure {
				reply = append(reply, "250-STARTTLS")
			}
			reply = append(reply, "250 HELP")
			_ = tp.PrintfLine("%s", strings.Join(reply, "\r\n"))
		case "STARTTLS":
			_ = tp.PrintfLine("220 ready to start TLS")
			tlsConn := tls.Server(conn, f.startTLS)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn, secure = tlsConn, true
			tp = textproto.NewConn(conn)
		case "AUTH":
			fields := strings.Fields(line)
			if len(fields) == 3 {
				decoded, _ := base64.StdEncoding.DecodeString(fields[2])
				f.record(func(s *smtpSession) { s.auth = string(decoded) })
			}
			_ = tp.PrintfLine("235 authenticated")
		case "MAIL":
			isSecure := secure
			f.record(func(s *smtpSession) { s.secureAtMail = isSecure })
			_ = tp.PrintfLine("250 sender ok")
		case "DATA":
			_ = tp.PrintfLine("354 end with <CRLF>.<CRLF>")
			payload, err := io.ReadAll(tp.DotReader())
			if err != nil {
				return
			}
			f.record(func(s *smtpSession) { s.data = string(payload) })
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("250 ok")
		}
	}
}

func (f *fakeSMTP) record(update func(*smtpSession)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	update(&f.session)
}
