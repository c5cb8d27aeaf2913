// Package contact implements the contact-form intake: validation,
// honeypot spam filtering, per-IP rate limiting and SMTP delivery.
package contact

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/estudiomv/webjuridico/internal/config"
)

// Error codes surfaced to the HTTP layer.
const (
	ErrNotConfigured = "EMAIL_NOT_CONFIGURED"
	ErrSendFailed    = "EMAIL_SEND_FAILED"
)

const (
	maxNameLen    = 120
	maxEmailLen   = 180
	maxMessageLen = 4000

	minNameLen    = 2
	minMessageLen = 10
)

var (
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Submission is the raw contact-form body.
type Submission struct {
	Name     string `json:"nombre"`
	Email    string `json:"email"`
	Message  string `json:"consulta"`
	Website  string `json:"website"` // honeypot, humans never fill it
	Honeypot string `json:"_honey"`  // legacy honeypot alias
}

// Validation is the outcome of checking a submission. Spam submissions
// carry no errors: the caller pretends success so bots learn nothing.
type Validation struct {
	IsSpam  bool
	Cleaned Submission
	Errors  []string
}

// Meta carries request metadata included in the delivered mail.
type Meta struct {
	IP        string
	UserAgent string
}

func normalizeSingleLine(s string, max int) string {
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	if len(s) > max {
		s = s[:max]
	}
	return s
}

func normalizeMultiline(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\r", ""))
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// Validate normalizes and checks a submission.
func Validate(sub Submission) Validation {
	cleaned := Submission{
		Name:    normalizeSingleLine(sub.Name, maxNameLen),
		Email:   strings.ToLower(normalizeSingleLine(sub.Email, maxEmailLen)),
		Message: normalizeMultiline(sub.Message, maxMessageLen),
	}
	honeypot := sub.Website
	if honeypot == "" {
		honeypot = sub.Honeypot
	}
	cleaned.Website = normalizeSingleLine(honeypot, maxNameLen)

	if cleaned.Website != "" {
		return Validation{IsSpam: true, Cleaned: cleaned}
	}

	var errs []string
	if len(cleaned.Name) < minNameLen {
		errs = append(errs, "Ingrese un nombre valido (minimo 2 caracteres).")
	}
	if !emailPattern.MatchString(cleaned.Email) {
		errs = append(errs, "Ingrese un correo valido.")
	}
	if len(cleaned.Message) < minMessageLen {
		errs = append(errs, "La consulta debe tener al menos 10 caracteres.")
	}

	return Validation{Cleaned: cleaned, Errors: errs}
}

// RateLimiter applies a sliding-window per-IP attempt limit. Every checked
// request consumes an attempt, including ones later rejected by
// validation, matching the original deployment's behavior.
type RateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	attempts map[string][]time.Time
}

// NewRateLimiter allows max attempts per window for each IP.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:   window,
		max:      max,
		attempts: make(map[string][]time.Time),
	}
}

// Allow records an attempt for ip and reports whether it is within limits.
func (rl *RateLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, stamps := range rl.attempts {
		valid := stamps[:0]
		for _, s := range stamps {
			if now.Sub(s) < rl.window {
				valid = append(valid, s)
			}
		}
		if len(valid) == 0 {
			delete(rl.attempts, key)
		} else {
			rl.attempts[key] = valid
		}
	}

	if len(rl.attempts[ip]) >= rl.max {
		return false
	}
	rl.attempts[ip] = append(rl.attempts[ip], now)
	return true
}

// Sender delivers a validated submission.
type Sender interface {
	Send(sub Submission, meta Meta) error
}

// MailSender delivers submissions over SMTP via gomail.
type MailSender struct {
	cfg config.ContactConfig
	log *zap.Logger
}

// NewMailSender creates an SMTP sender from the contact configuration.
func NewMailSender(cfg config.ContactConfig, log *zap.Logger) *MailSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailSender{cfg: cfg, log: log.Named("contact")}
}

// Configured reports whether all SMTP settings needed for delivery are set.
func (m *MailSender) Configured() bool {
	c := m.cfg
	return c.SMTPHost != "" && c.SMTPPort != 0 && c.SMTPUser != "" && c.SMTPPass != "" &&
		m.toEmail() != "" && m.fromEmail() != ""
}

func (m *MailSender) toEmail() string {
	if m.cfg.ToEmail != "" {
		return m.cfg.ToEmail
	}
	return m.cfg.SMTPUser
}

func (m *MailSender) fromEmail() string {
	if m.cfg.FromEmail != "" {
		return m.cfg.FromEmail
	}
	return m.cfg.SMTPUser
}

// Send delivers the submission to the configured recipient.
func (m *MailSender) Send(sub Submission, meta Meta) error {
	if !m.Configured() {
		return fmt.Errorf("%s", ErrNotConfigured)
	}

	receivedAt := time.Now().UTC().Format(time.RFC3339)

	text := strings.Join([]string{
		"Nueva consulta desde la web",
		"",
		"Nombre: " + sub.Name,
		"Email: " + sub.Email,
		"IP: " + meta.IP,
		"User-Agent: " + meta.UserAgent,
		"Fecha: " + receivedAt,
		"",
		"Consulta:",
		sub.Message,
	}, "\n")

	htmlBody := strings.Join([]string{
		"<h2>Nueva consulta desde la web</h2>",
		"<p><strong>Nombre:</strong> " + html.EscapeString(sub.Name) + "</p>",
		"<p><strong>Email:</strong> " + html.EscapeString(sub.Email) + "</p>",
		"<p><strong>IP:</strong> " + html.EscapeString(meta.IP) + "</p>",
		"<p><strong>User-Agent:</strong> " + html.EscapeString(meta.UserAgent) + "</p>",
		"<p><strong>Fecha:</strong> " + html.EscapeString(receivedAt) + "</p>",
		"<hr/>",
		"<p><strong>Consulta:</strong></p>",
		`<pre style="white-space:pre-wrap;font-family:Arial,sans-serif;">` + html.EscapeString(sub.Message) + "</pre>",
	}, "")

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.fromEmail(), "Web Juridico")
	msg.SetHeader("To", m.toEmail())
	msg.SetHeader("Reply-To", sub.Email)
	msg.SetHeader("Subject", fmt.Sprintf("%s Nueva consulta de %s", m.cfg.SubjectPrefix, sub.Name))
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", htmlBody)

	dialer := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.SMTPUser, m.cfg.SMTPPass)
	if err := dialer.DialAndSend(msg); err != nil {
		m.log.Error("contact mail delivery failed", zap.Error(err))
		return fmt.Errorf("%s: %w", ErrSendFailed, err)
	}

	m.log.Info("contact mail delivered", zap.String("from", sub.Email))
	return nil
}
