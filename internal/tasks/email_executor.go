package tasks

import (
	"bufio"
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/retrack-engine/retrack/internal/domain"
)

// SMTPConfig configures outbound mail delivery. CatchAllMatcher, when
// non-nil, rewrites every recipient to CatchAllRecipient whenever it
// matches the rendered body — used to keep test environments from
// leaking mail to real addresses.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	CatchAllMatcher   *regexp.Regexp
	CatchAllRecipient string
}

// Dialer abstracts SMTP client construction so tests can inject a fake
// transport without opening a real TCP connection.
type Dialer interface {
	Dial(addr string) (*smtp.Client, error)
}

type netSMTPDialer struct{}

func (netSMTPDialer) Dial(addr string) (*smtp.Client, error) {
	return smtp.Dial(addr)
}

// EmailExecutor sends EmailTask tasks over SMTP, honoring the catch-all
// rewrite and the shared send throttle, grounded on
// bravo1goingdark-mailgrid's SendWithClient MIME construction.
type EmailExecutor struct {
	cfg      SMTPConfig
	throttle *SMTPThrottle
	dialer   Dialer
}

// NewEmailExecutor builds an EmailExecutor. A nil dialer uses smtp.Dial.
func NewEmailExecutor(cfg SMTPConfig, throttle *SMTPThrottle, dialer Dialer) *EmailExecutor {
	if dialer == nil {
		dialer = netSMTPDialer{}
	}
	return &EmailExecutor{cfg: cfg, throttle: throttle, dialer: dialer}
}

// Execute implements Executor.
func (e *EmailExecutor) Execute(ctx context.Context, task domain.Task) error {
	if task.Type.Kind != domain.TaskKindEmail {
		return fmt.Errorf("email executor received task kind %q", task.Type.Kind)
	}
	email := task.Type.Email

	subject, body, html := renderContent(email.Content)
	to := applyCatchAll(email.To, body, e.cfg)

	e.throttle.Wait()

	addr := e.cfg.Host + ":" + strconv.Itoa(e.cfg.Port)
	client, err := e.dialer.Dial(addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer client.Close()

	if e.cfg.Username != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", recipient, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	bw := bufio.NewWriter(w)
	if err := writeMessage(bw, e.cfg.From, to, subject, body, html); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}

	return client.Quit()
}

// renderContent resolves an EmailContent tagged union to a subject/body
// pair. Only literal content is resolved; template content yields an
// empty subject and body. The Fetch Pipeline's Notify step enqueues
// literal content only.
func renderContent(content domain.EmailContent) (subject, body string, html bool) {
	if content.Kind == domain.EmailContentKindLiteral {
		return content.Literal.Subject, content.Literal.Body, content.Literal.HTML
	}
	return "", "", false
}

// applyCatchAll rewrites every recipient to the configured catch-all
// address when its matcher matches the rendered body.
func applyCatchAll(to []string, body string, cfg SMTPConfig) []string {
	if cfg.CatchAllMatcher == nil || cfg.CatchAllRecipient == "" {
		return to
	}
	if !cfg.CatchAllMatcher.MatchString(body) {
		return to
	}
	return []string{cfg.CatchAllRecipient}
}

func writeMessage(w *bufio.Writer, from string, to []string, subject, body string, html bool) error {
	contentType := "text/plain; charset=\"UTF-8\""
	if html {
		contentType = "text/html; charset=\"UTF-8\""
	}

	headers := map[string]string{
		"From":         from,
		"To":           strings.Join(to, ", "),
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Date":         time.Now().UTC().Format(time.RFC1123Z),
		"Content-Type": contentType,
	}
	for _, key := range []string{"From", "To", "Subject", "MIME-Version", "Date", "Content-Type"} {
		if _, err := w.WriteString(key + ": " + headers[key] + "\r\n"); err != nil {
			return err
		}
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	_, err := w.WriteString(body)
	return err
}
