// Package mailer delivers sign-in codes to providers.  SMTPSender is used
// when an SMTP relay is configured; FileSender appends messages to a local
// log file for development.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// CodeMessage builds the email carrying a sign-in code.
func CodeMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your sign-in code",
		Body: fmt.Sprintf("Your sign-in code is %s.\r\nIt expires in %d minutes.\r\n",
			code, int(ttl.Minutes())),
	}
}

// SMTPSender sends through an SMTP relay using PLAIN auth when a user is
// configured.
type SMTPSender struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (s SMTPSender) Send(ctx context.Context, m Message) error {
	addr := net.JoinHostPort(s.Host, s.Port)
	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + m.To,
		"Subject: " + m.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		m.Body,
	}, "\r\n")

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, s.From, []string{m.To}, []byte(msg)) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FileSender appends one line per message to Path.
type FileSender struct {
	Path string
	mu   sync.Mutex
}

func (f *FileSender) Send(_ context.Context, m Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fh, err := os.OpenFile(f.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer fh.Close()

	body := strings.ReplaceAll(strings.TrimSpace(m.Body), "\r\n", " ")
	line := fmt.Sprintf("[%s] to=%s | subject=%q | %s\n",
		time.Now().UTC().Format(time.RFC3339), m.To, m.Subject, body)
	if _, err := fh.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// New returns an SMTPSender when host is set, a FileSender writing to
// logPath otherwise.
func New(host, port, user, pass, from, logPath string) Sender {
	if host != "" {
		return SMTPSender{Host: host, Port: port, User: user, Pass: pass, From: from}
	}
	return &FileSender{Path: logPath}
}
