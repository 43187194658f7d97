package services

import (
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"time"

	"github.com/dimitrije/vericheck-api/internal/config"
)

// smtpTimeout bounds the whole conversation with the mail server.
const smtpTimeout = 15 * time.Second

type EmailService struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{cfg: cfg, timeout: smtpTimeout}
}

func (s *EmailService) IsConfigured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != "" && s.cfg.From != ""
}

func (s *EmailService) Send(to, subject, body string) error {
	if !s.IsConfigured() {
		return nil
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.cfg.From, to, subject, body)

	return s.sendMail(addr, auth, to, []byte(msg))
}

// sendMail follows smtp.SendMail but puts a deadline on the connection.
func (s *EmailService) sendMail(addr string, auth smtp.Auth, to string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return fmt.Errorf("smtp: dial failed: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp: set deadline failed: %w", err)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp: handshake failed: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("smtp: starttls failed: %w", err)
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp: auth failed: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp: MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp: RCPT TO failed: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp: DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp: write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: write failed: %w", err)
	}
	return c.Quit()
}

var _ Mailer = (*EmailService)(nil)

func (s *EmailService) SendAdminWelcome(to, name string) error {
	subject := "Your VeriCheck administrator account"
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Welcome, %s</h2>
			<p>An administrator account has been created for you on the VeriCheck portal.</p>
			<p>Sign in with this email address and the password provided by your super admin, then change it from your profile page.</p>
		</body>
		</html>
	`, html.EscapeString(name))

	return s.Send(to, subject, body)
}

func (s *EmailService) SendStatusChanged(to, name string, active bool) error {
	subject := "Your VeriCheck account has been deactivated"
	status := "deactivated. You will not be able to sign in until an administrator reactivates it"
	if active {
		subject = "Your VeriCheck account has been reactivated"
		status = "reactivated. You can sign in again"
	}
	body := fmt.Sprintf(`
		<html>
		<body>
			<p>Hi %s,</p>
			<p>Your account has been %s.</p>
		</body>
		</html>
	`, html.EscapeString(name), status)

	return s.Send(to, subject, body)
}
