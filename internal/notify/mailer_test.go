package notify

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestJoinLink(t *testing.T) {
	link := JoinLink("https://app.example.com/", "abc123", "group-1")

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("invalid link %q: %v", link, err)
	}
	if u.Path != "/join" {
		t.Errorf("path: got %s, want /join", u.Path)
	}
	if u.Query().Get("token") != "abc123" || u.Query().Get("familyId") != "group-1" {
		t.Errorf("unexpected query: %s", u.RawQuery)
	}
}

func TestInvitationBody(t *testing.T) {
	msg := InvitationMessage{
		To:          "b@example.com",
		GroupID:     "g1",
		GroupName:   "Smiths",
		InviterName: "Alice",
		Token:       "tok",
		ExpiresAt:   time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	}
	subject, body := invitationBody("http://localhost:8080", msg)

	if !strings.Contains(subject, "Smiths") {
		t.Errorf("subject should name the group: %q", subject)
	}
	for _, want := range []string{"Alice", "token=tok", "familyId=g1", "Jan 2, 2026"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestLogMailer(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer("http://localhost:8080", slog.New(slog.NewTextHandler(&buf, nil)))

	err := m.SendInvitation(context.Background(), InvitationMessage{To: "b@example.com", GroupID: "g1", GroupName: "Smiths", Token: "tok"})
	if err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}
	if !strings.Contains(buf.String(), "b@example.com") {
		t.Errorf("log should mention recipient: %s", buf.String())
	}
}

func TestSMTPMailerHonorsCanceledContext(t *testing.T) {
	m := NewSMTPMailer("127.0.0.1", 1, "", "", "noreply@example.com", "http://localhost")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.SendInvitation(ctx, InvitationMessage{To: "b@example.com"}); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	subject := "You're invited to join Smiths\r\nBcc: victim@example.com"
	raw := string(buildMessage("noreply@example.com", "b@example.com", subject, "hello\r\n"))

	header, _, ok := strings.Cut(raw, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header/body separator in %q", raw)
	}
	subjects := 0
	for _, line := range strings.Split(header, "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "bcc:") {
			t.Errorf("injected header line: %q", line)
		}
		if v, found := strings.CutPrefix(line, "Subject: "); found {
			subjects++
			decoded, err := new(mime.WordDecoder).DecodeHeader(v)
			if err != nil {
				t.Fatalf("decode subject: %v", err)
			}
			if decoded != subject {
				t.Errorf("subject round trip: got %q", decoded)
			}
		}
	}
	if subjects != 1 {
		t.Errorf("expected one Subject header, got %d", subjects)
	}

	plain := string(buildMessage("a@example.com", "b@example.com", "Join Smiths", ""))
	if !strings.Contains(plain, "Subject: Join Smiths\r\n") {
		t.Errorf("ASCII subject should stay readable: %q", plain)
	}
}

// smtpRelay is a minimal SMTP server that records one message.
type smtpRelay struct {
	ln net.Listener

	mu   sync.Mutex
	rcpt []string
	data string
}

func newSMTPRelay(t *testing.T) *smtpRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := &smtpRelay{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go r.serve()
	return r
}

func (r *smtpRelay) port(t *testing.T) int {
	t.Helper()
	_, p, _ := net.SplitHostPort(r.ln.Addr().String())
	n, err := strconv.Atoi(p)
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return n
}

func (r *smtpRelay) serve() {
	conn, err := r.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	reply := func(format string, args ...any) { _ = tp.PrintfLine(format, args...) }

	reply("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch cmd {
		case "EHLO", "HELO":
			reply("250 localhost")
		case "MAIL":
			reply("250 OK")
		case "RCPT":
			r.mu.Lock()
			r.rcpt = append(r.rcpt, line)
			r.mu.Unlock()
			reply("250 OK")
		case "DATA":
			reply("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			r.mu.Lock()
			r.data = string(body)
			r.mu.Unlock()
			reply("250 queued")
		case "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 unsupported")
		}
	}
}

func TestSMTPMailerSendsInvitation(t *testing.T) {
	relay := newSMTPRelay(t)
	m := NewSMTPMailer("127.0.0.1", relay.port(t), "", "", "noreply@example.com", "http://localhost:8080")

	err := m.SendInvitation(context.Background(), InvitationMessage{
		To:        "b@example.com",
		GroupID:   "g1",
		GroupName: "Smiths",
		Token:     "tok",
		ExpiresAt: time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("SendInvitation failed: %v", err)
	}

	relay.mu.Lock()
	defer relay.mu.Unlock()
	if len(relay.rcpt) != 1 || !strings.Contains(relay.rcpt[0], "<b@example.com>") {
		t.Errorf("unexpected recipients: %v", relay.rcpt)
	}
	for _, want := range []string{"To: b@example.com", "Subject: ", "token=tok"} {
		if !strings.Contains(relay.data, want) {
			t.Errorf("message missing %q:\n%s", want, relay.data)
		}
	}
}

// silentRelay accepts connections and never answers.
func silentRelay(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		ln.Close()
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				// Drain until the client gives up.
				_, _ = bufio.NewReader(conn).ReadString(0)
				<-done
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestSMTPMailerBoundedBySilentRelay(t *testing.T) {
	port := silentRelay(t)

	tests := []struct {
		name    string
		timeout time.Duration
		ctx     func() (context.Context, context.CancelFunc)
	}{
		{
			name:    "mailer timeout",
			timeout: 200 * time.Millisecond,
			ctx:     func() (context.Context, context.CancelFunc) { return context.Background(), func() {} },
		},
		{
			name:    "caller deadline",
			timeout: time.Minute,
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithTimeout(context.Background(), 200*time.Millisecond) },
		},
		{
			name:    "caller cancel",
			timeout: time.Minute,
			ctx: func() (context.Context, context.CancelFunc) {
				ctx, cancel := context.WithCancel(context.Background())
				time.AfterFunc(200*time.Millisecond, cancel)
				return ctx, cancel
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSMTPMailer("127.0.0.1", port, "", "", "noreply@example.com", "http://localhost").WithTimeout(tt.timeout)
			ctx, cancel := tt.ctx()
			defer cancel()

			start := time.Now()
			err := m.SendInvitation(ctx, InvitationMessage{To: "b@example.com"})
			if err == nil {
				t.Fatal("expected an error from a silent relay")
			}
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Errorf("send took %s", elapsed)
			}
		})
	}
}

func ExampleJoinLink() {
	fmt.Println(JoinLink("https://funds.example.com/", "abc", "g1"))
	// Output: https://funds.example.com/join?familyId=g1&token=abc
}
