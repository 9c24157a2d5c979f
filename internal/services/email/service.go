package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const htmlHeaders = "MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\""

type Emailer interface {
	Send(to, subject, additionalHeaders, body string) error
}

// Service renders and sends the two lifecycle mails: the validation link and
// the post-validation welcome.
type Service struct {
	emailer      Emailer
	templatesDir string
	baseURL      string
}

func NewService(service Emailer, tempsDir, baseURL string) *Service {
	return &Service{
		emailer:      service,
		templatesDir: tempsDir,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
	}
}

// SendValidation mails the time-limited validation link for the given token.
func (e *Service) SendValidation(toEmail, token string) error {
	tmpl, err := template.ParseFiles(e.templatesDir + "/validation_email.html")
	if err != nil {
		return err
	}

	var body bytes.Buffer
	err = tmpl.Execute(&body, map[string]string{
		"Email": toEmail,
		"Link":  fmt.Sprintf("%s/api/validate/%s", e.baseURL, token),
	})
	if err != nil {
		return err
	}

	return e.emailer.Send(toEmail,
		"Please validate your email subscription",
		htmlHeaders,
		body.String())
}

// SendWelcome mails the post-validation welcome listing the chosen
// preferences, when there are any.
func (e *Service) SendWelcome(toEmail string, preferences []string) error {
	tmpl, err := template.ParseFiles(e.templatesDir + "/welcome_email.html")
	if err != nil {
		return err
	}

	var body bytes.Buffer
	err = tmpl.Execute(&body, map[string]interface{}{
		"Email":       toEmail,
		"Preferences": preferences,
	})
	if err != nil {
		return err
	}

	return e.emailer.Send(toEmail,
		"Welcome to our newsletter!",
		htmlHeaders,
		body.String())
}
