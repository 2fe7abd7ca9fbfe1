package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kouriin1/Servicio-Comunitario/internal/config"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages over SMTP. Without a configured host messages
// are only logged.
type Mailer struct {
	cfg  config.MailConfig
	log  zerolog.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

func NewMailer(cfg config.MailConfig, log zerolog.Logger) *Mailer {
	return &Mailer{
		cfg:  cfg,
		log:  log.With().Str("component", "mail").Logger(),
		send: smtp.SendMail,
		now:  time.Now,
	}
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.cfg.Host == "" {
		m.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Str("body", msg.Body).Msg("smtp disabled, mail logged")
		return nil
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, []string{msg.To}, m.render(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	m.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("mail sent")
	return nil
}

func (m *Mailer) render(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func greeting(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Hola,"
	}
	return "Hola " + strings.TrimSpace(name) + ","
}

func RecoveryMessage(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "USM RED: restablecer contraseña",
		Body: greeting(name) + "\n\n" +
			"Recibimos una solicitud para restablecer tu contraseña.\n" +
			"Abre el siguiente enlace para elegir una nueva:\n\n" + link + "\n\n" +
			"Si no fuiste tú, ignora este mensaje.\n",
	}
}

func ConfirmationMessage(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "USM RED: confirma tu correo",
		Body: greeting(name) + "\n\n" +
			"Confirma tu cuenta abriendo el siguiente enlace:\n\n" + link + "\n",
	}
}
