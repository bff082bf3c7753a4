// Package notify delivers invitation emails.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// InvitationMessage describes one invitation email.
type InvitationMessage struct {
	To          string
	GroupID     string
	GroupName   string
	InviterName string
	Token       string
	ExpiresAt   time.Time
}

// Mailer sends invitation emails. Delivery is best-effort: callers log
// failures and never undo the invitation they are announcing.
type Mailer interface {
	SendInvitation(ctx context.Context, msg InvitationMessage) error
}

// JoinLink builds the frontend URL that accepts an invitation.
func JoinLink(baseURL, token, groupID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("familyId", groupID)
	return strings.TrimRight(baseURL, "/") + "/join?" + q.Encode()
}

func invitationBody(baseURL string, msg InvitationMessage) (subject, body string) {
	inviter := msg.InviterName
	if inviter == "" {
		inviter = "A family member"
	}
	subject = fmt.Sprintf("You're invited to join %s", msg.GroupName)
	body = fmt.Sprintf(
		"%s invited you to the family group %q.\r\n\r\nJoin here: %s\r\n\r\nThis link expires on %s.\r\n",
		inviter, msg.GroupName,
		JoinLink(baseURL, msg.Token, msg.GroupID),
		msg.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	)
	return subject, body
}

// DefaultSendTimeout bounds one SMTP conversation when the caller's context
// has no earlier deadline.
const DefaultSendTimeout = 30 * time.Second

// SMTPMailer sends mail through an SMTP relay using PLAIN auth.
type SMTPMailer struct {
	addr    string
	host    string
	auth    smtp.Auth
	from    string
	baseURL string
	timeout time.Duration
}

// NewSMTPMailer creates a mailer for host:port. Empty username disables auth.
func NewSMTPMailer(host string, port int, username, password, from, baseURL string) *SMTPMailer {
	m := &SMTPMailer{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		host:    host,
		from:    from,
		baseURL: baseURL,
		timeout: DefaultSendTimeout,
	}
	if username != "" {
		m.auth = smtp.PlainAuth("", username, password, host)
	}
	return m
}

// WithTimeout overrides DefaultSendTimeout.
func (m *SMTPMailer) WithTimeout(d time.Duration) *SMTPMailer {
	m.timeout = d
	return m
}

// buildMessage assembles the raw RFC 5322 message. The subject is
// Q-encoded so user-supplied text cannot start a new header line.
func buildMessage(from, to, subject, body string) []byte {
	return []byte(strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n"))
}

// SendInvitation delivers the invitation email. The conversation is bounded
// by ctx and the mailer timeout, whichever ends first.
func (m *SMTPMailer) SendInvitation(ctx context.Context, msg InvitationMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body := invitationBody(m.baseURL, msg)
	if err := m.send(ctx, msg.To, buildMessage(m.from, msg.To, subject, body)); err != nil {
		return fmt.Errorf("failed to send invitation to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", m.addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock reads if ctx is canceled mid-conversation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogMailer writes invitation links to the log instead of sending mail.
// Used when no SMTP relay is configured.
type LogMailer struct {
	baseURL string
	logger  *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(baseURL string, logger *slog.Logger) *LogMailer {
	return &LogMailer{baseURL: baseURL, logger: logger}
}

// SendInvitation logs the invitation.
func (m *LogMailer) SendInvitation(ctx context.Context, msg InvitationMessage) error {
	subject, _ := invitationBody(m.baseURL, msg)
	m.logger.InfoContext(ctx, "Invitation email (not sent, SMTP disabled)",
		"to", msg.To,
		"subject", subject,
		"link", JoinLink(m.baseURL, msg.Token, msg.GroupID),
	)
	return nil
}
