// Package notify sends alert emails over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/i474232898/weather-monitoring/internal/weather"
)

var errMailerDisabled = errors.New("smtp is not configured")

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerConfig holds SMTP connection settings. The sender address doubles as
// the login user.
type MailerConfig struct {
	Server      string
	Port        int
	SenderEmail string
	Password    string
}

// Mailer sends mail through an SMTP server with STARTTLS and PLAIN auth.
type Mailer struct {
	cfg MailerConfig
}

// NewMailer creates a new Mailer.
func NewMailer(cfg MailerConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if m.cfg.Server == "" || m.cfg.SenderEmail == "" {
		return errMailerDisabled
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.SenderEmail); err != nil {
		return fmt.Errorf("smtp: sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("smtp: recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.cfg.Server,
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.SenderEmail),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp: client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	return nil
}

// AlertEmail formats the notification for an alert.
func AlertEmail(city string, a weather.Alert) (subject, body string) {
	subject = fmt.Sprintf("Weather Alert for %s: %s", city, a.AlertType)

	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "There is a new weather alert for %s:\n\n", city)
	fmt.Fprintf(&b, "Alert Type: %s\n", a.AlertType)
	fmt.Fprintf(&b, "Alert Message: %s\n", a.AlertMessage)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", a.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString("Please take necessary precautions.\n\n")
	b.WriteString("Best regards,\nWeather Monitoring System\n")
	return subject, b.String()
}

// AlertSource returns the newest alert of a city.
type AlertSource interface {
	LatestAlert(ctx context.Context, city string) (weather.Alert, bool, error)
}

// AlertNotifier emails the latest alert of a city on request.
type AlertNotifier struct {
	alerts AlertSource
	sender Sender
	logger *slog.Logger
}

// NewAlertNotifier creates a new AlertNotifier.
func NewAlertNotifier(alerts AlertSource, sender Sender, logger *slog.Logger) *AlertNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertNotifier{alerts: alerts, sender: sender, logger: logger}
}

// Notify sends the latest alert for city to the recipient. It returns
// weather.ErrNotFound when the city has no alerts.
func (n *AlertNotifier) Notify(ctx context.Context, city, to string) error {
	alert, found, err := n.alerts.LatestAlert(ctx, city)
	if err != nil {
		return err
	}
	if !found {
		return weather.ErrNotFound
	}

	subject, body := AlertEmail(city, alert)
	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		n.logger.Error("alert email failed", "city", city, "alert_id", alert.ID, "error", err)
		return err
	}
	n.logger.Info("alert email sent", "city", city, "alert_id", alert.ID)
	return nil
}
