// Package mail renders seller notifications into messages and hands them to
// a Sender.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/neomorfeo/sellerhub/internal/domain"
)

// Message is a rendered mail ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type mailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[domain.NotificationKind]mailTemplate{
	domain.NotificationAccountRegistered: {
		subject: "Confirmez votre adresse email",
		body: template.Must(template.New("account_registered").Parse(
			`Bonjour {{.SellerName}},

Votre compte vendeur ({{.SellerID}}) a bien été créé.
{{- with .VerificationToken}}
Pour confirmer votre adresse email, utilisez ce code de vérification : {{.}}
{{- end}}
Nous vous préviendrons dès que vos coordonnées bancaires auront été validées.
`)),
	},
	domain.NotificationSellerValidated: {
		subject: "Votre compte vendeur est validé !",
		body: template.Must(template.New("seller_validated").Parse(
			`Bonjour {{.SellerName}},

Vos coordonnées bancaires ont été validées. Votre boutique est en cours de création.
`)),
	},
	domain.NotificationSellerAccessProvisioned: {
		subject: "Votre boutique est prête",
		body: template.Must(template.New("seller_access_provisioned").Parse(
			`Bonjour {{.SellerName}},

Votre canal de vente {{.ChannelID}} est prêt. Vous pouvez vous connecter et gérer votre catalogue.
`)),
	},
}

// Render builds the message for a notification addressed to "to".
func Render(n domain.Notification, to string) (Message, error) {
	tmpl, ok := templates[n.Kind]
	if !ok {
		return Message{}, fmt.Errorf("no mail template for notification %q", n.Kind)
	}

	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, n); err != nil {
		return Message{}, fmt.Errorf("rendering %s mail: %w", n.Kind, err)
	}

	return Message{To: to, Subject: tmpl.subject, Body: body.String()}, nil
}

// AdminDirectory resolves administrators by id.
type AdminDirectory interface {
	GetAdmin(ctx context.Context, id string) (domain.Administrator, error)
}

// Dispatcher renders notifications and sends them.
type Dispatcher struct {
	sender       Sender
	admins       AdminDirectory
	supportEmail string
}

// NewDispatcher creates a dispatcher. Notifications without an email are
// addressed to their administrator, then to supportEmail.
func NewDispatcher(sender Sender, admins AdminDirectory, supportEmail string) *Dispatcher {
	return &Dispatcher{sender: sender, admins: admins, supportEmail: supportEmail}
}

// Deliver renders n and sends it.
func (d *Dispatcher) Deliver(ctx context.Context, n domain.Notification) error {
	to, err := d.recipient(ctx, n)
	if err != nil {
		return err
	}

	msg, err := Render(n, to)
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return &domain.NotificationDeliveryError{Kind: n.Kind, Err: err}
	}
	return nil
}

func (d *Dispatcher) recipient(ctx context.Context, n domain.Notification) (string, error) {
	if n.Email != "" {
		return n.Email, nil
	}
	if n.AdminID != "" && d.admins != nil {
		admin, err := d.admins.GetAdmin(ctx, n.AdminID)
		switch {
		case err == nil && admin.Email != "":
			return admin.Email, nil
		case err != nil && !errors.Is(err, domain.ErrAdminNotFound):
			return "", fmt.Errorf("resolving recipient: %w", err)
		}
	}
	if d.supportEmail != "" {
		return d.supportEmail, nil
	}
	return "", fmt.Errorf("no recipient for %s mail to seller %s", n.Kind, n.SellerID)
}

// LogSender writes messages to the structured log instead of an SMTP relay.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a sender logging through logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail sent",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}
