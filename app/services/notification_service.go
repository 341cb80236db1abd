package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/callback-survey/app/logger"
	"github.com/sirupsen/logrus"
)

// SubmissionNotice is the content of a new-submission email
type SubmissionNotice struct {
	ID          uint
	Name        string
	Phone       string
	CallTime    string
	MaxAttempts string
	Notes       string
}

// NotificationService sends operator notifications by email
type NotificationService interface {
	NotifySubmission(ctx context.Context, notice SubmissionNotice) error
	SendDigest(ctx context.Context, recipient string, count int64, from, to time.Time) error
	SendEmail(ctx context.Context, email, subject, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(ctx context.Context, email, subject, message string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
	notifyEmail   string
}

// NewNotificationService creates a notification service delivering to notifyEmail
func NewNotificationService(emailProvider EmailProvider, notifyEmail string) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
		notifyEmail:   notifyEmail,
	}
}

// FormatSubmissionEmail renders the subject and plain-text body for a submission
func FormatSubmissionEmail(n SubmissionNotice) (subject, body string) {
	subject = "New Survey Submission from " + n.Name
	body = "Name: " + n.Name + "\n" +
		"Phone: " + n.Phone + "\n" +
		"When to call: " + n.CallTime + "\n" +
		"Max attempts: " + n.MaxAttempts + "\n" +
		"Notes: " + n.Notes + "\n"
	return subject, body
}

// NotifySubmission emails the configured operator about a stored submission
func (s *NotificationServiceImpl) NotifySubmission(ctx context.Context, notice SubmissionNotice) error {
	subject, body := FormatSubmissionEmail(notice)
	return s.SendEmail(ctx, s.notifyEmail, subject, body)
}

// SendDigest emails a summary of submissions received in [from, to)
func (s *NotificationServiceImpl) SendDigest(ctx context.Context, recipient string, count int64, from, to time.Time) error {
	if recipient == "" {
		recipient = s.notifyEmail
	}
	subject := fmt.Sprintf("Survey digest: %d new submission(s)", count)
	body := fmt.Sprintf("Submissions received between %s and %s: %d\n",
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), count)
	return s.SendEmail(ctx, recipient, subject, body)
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(ctx context.Context, email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email address: %s", email)
	}
	return s.emailProvider.SendEmail(ctx, email, subject, message)
}

// SentEmail is a message captured by MockEmailProvider
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// MockEmailProvider logs and records messages instead of sending them
type MockEmailProvider struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func NewMockEmailProvider() *MockEmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.sent = append(p.sent, SentEmail{To: email, Subject: subject, Body: message})
	logger.Log.WithFields(logrus.Fields{"to": email, "subject": subject}).Info("Email recorded by mock provider")
	return nil
}

// Sent returns a copy of the recorded messages
func (p *MockEmailProvider) Sent() []SentEmail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentEmail(nil), p.sent...)
}

// SMTPEmailProvider delivers mail over SMTP, with implicit TLS or STARTTLS
type SMTPEmailProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	implicit  bool
	timeout   time.Duration
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail string, implicitTLS bool, timeout time.Duration) EmailProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPEmailProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
		implicit:  implicitTLS,
		timeout:   timeout,
	}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, email, subject, message string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: p.host, MinVersion: tls.VersionTLS12}
	if p.implicit {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if !p.implicit {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if p.username != "" {
		if err := client.Auth(smtp.PlainAuth("", p.username, p.password, p.host)); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(p.fromEmail); err != nil {
		return fmt.Errorf("SMTP MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(email); err != nil {
		return fmt.Errorf("SMTP RCPT TO failed: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write(buildMessage(p.fromEmail, email, subject, message)); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}

	return client.Quit()
}

// buildMessage renders an RFC 5322 plain-text message with CRLF line endings
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

// sanitizeHeader keeps user text from injecting extra headers
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
