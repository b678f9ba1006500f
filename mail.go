package authcore

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"
)

// SMTPSender is a MailSender over implicit-TLS SMTP (port 465 style
// submission). It dials per message; the volume here is one short mail per
// password reset, not a delivery pipeline.
type SMTPSender struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Send implements [MailSender]. The context bounds the dial; SMTP protocol
// exchanges after the connection is established run to completion.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", s.Username) +
			fmt.Sprintf("To: %s\r\n", to) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	addr := net.JoinHostPort(s.Host, s.Port)

	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	conn := tls.Client(rawConn, &tls.Config{ServerName: s.Host})
	if err := conn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Quit()

	auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
	if err := client.Auth(auth); err != nil {
		return err
	}

	if err := client.Mail(s.Username); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

// otpMessageBody is the default HTML body for the reset mail: the passcode in
// large type plus its expiry window.
func otpMessageBody(code string, ttl time.Duration) string {
	minutes := int(ttl / time.Minute)
	return fmt.Sprintf(`<div style="max-width: 600px; margin: 0 auto; padding: 20px; font-family: Arial, sans-serif;">
  <div style="background-color: #3BB77E; padding: 20px; border-radius: 10px; text-align: center;">
    <h2 style="color: white; margin: 0;">Password reset passcode</h2>
  </div>
  <div style="padding: 20px; background: #f9f9f9; border-radius: 10px; margin-top: 20px;">
    <p style="font-size: 16px; color: #666;">Your one-time passcode:</p>
    <div style="background: #fff; padding: 15px; border-radius: 5px; text-align: center; margin: 20px 0;">
      <strong style="font-size: 24px; color: #3BB77E; letter-spacing: 5px;">%s</strong>
    </div>
    <p style="color: #666; font-size: 14px;">This passcode expires in %d minutes.</p>
  </div>
</div>`, code, minutes)
}
