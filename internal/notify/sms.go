// Package notify delivers alert texts as SMS through carrier email gateways.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/and161185/phishtrack/internal/errs"
)

var gateways = map[string]string{
	"at&t":          "txt.att.net",
	"boost":         "myboostmobile.com",
	"sprint":        "messaging.sprintpcs.com",
	"t-mobile":      "tmomail.net",
	"verizon":       "vtext.com",
	"virgin mobile": "vmobl.com",
}

// Gateway returns the email-to-SMS domain of a carrier, case-insensitively.
func Gateway(carrier string) (string, bool) {
	d, ok := gateways[strings.ToLower(strings.TrimSpace(carrier))]
	return d, ok
}

// SMTPConfig configures the outgoing mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	NoVerify bool
}

// SMS sends text messages as plain emails to carrier gateways.
type SMS struct {
	send func(m *gomail.Message) error
	log  *zap.Logger
}

// NewSMS constructs a sender dialing the relay once per message.
func NewSMS(c SMTPConfig, log *zap.Logger) *SMS {
	var d *gomail.Dialer
	if c.Username == "" {
		d = &gomail.Dialer{Host: c.Host, Port: c.Port}
	} else {
		d = gomail.NewDialer(c.Host, c.Port, c.Username, c.Password)
	}
	if c.NoVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &SMS{send: func(m *gomail.Message) error { return d.DialAndSend(m) }, log: log}
}

// Send delivers text to number via the carrier gateway.
func (s *SMS) Send(ctx context.Context, text, number, carrier, from string) error {
	domain, ok := Gateway(carrier)
	if !ok {
		return fmt.Errorf("%w: %q", errs.ErrUnknownCarrier, carrier)
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return fmt.Errorf("invalid phone number %q", number)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", digits+"@"+domain)
	m.SetBody("text/plain", text)
	if err := s.send(m); err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	s.log.Debug("sms sent", zap.String("gateway", domain))
	return nil
}
