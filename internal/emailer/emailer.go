package emailer

import (
	"net/smtp"

	"github.com/rs/zerolog"
)

type Config struct {
	User     string
	Host     string
	Port     string
	Password string
	From     string
}

// SMTPService delivers mail through a plain-auth SMTP relay, one synchronous
// best-effort attempt per message.
type SMTPService struct {
	cfg Config
	log zerolog.Logger
}

func NewSMTPService(cfg Config, logger zerolog.Logger) *SMTPService {
	logger = logger.With().Str("component", "SMTPService").Logger()
	if cfg.Host == "" || cfg.Port == "" || cfg.From == "" {
		logger.Warn().Str("host", cfg.Host).Str("port", cfg.Port).
			Msg("SMTP credentials are not fully set")
	}
	return &SMTPService{cfg: cfg, log: logger}
}

func (e *SMTPService) Send(to, subject, additionalHeaders, body string) error {
	auth := smtp.PlainAuth("", e.cfg.User, e.cfg.Password, e.cfg.Host)

	msg := "From: " + e.cfg.From + "\n" +
		"To: " + to + "\n" +
		"Subject: " + subject + "\n" +
		additionalHeaders + "\n\n" +
		body

	addr := e.cfg.Host + ":" + e.cfg.Port
	return smtp.SendMail(addr, auth, e.cfg.From, []string{to}, []byte(msg))
}
