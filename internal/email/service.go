package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/pkg/circuitbreaker"
	"github.com/jwalitptl/barber-api/pkg/logger"
)

const ReservationSubject = "¡Nueva Reserva en Mateo's Barber!"

type Service interface {
	// SendReservation mails the operator about a new booking.
	SendReservation(ctx context.Context, r model.Reservation) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address. Defaults to Username.
	From string
	// Operator receives every reservation notice.
	Operator string
}

// mailer is satisfied by *gomail.Dialer.
type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	mailer   mailer
	breaker  *circuitbreaker.CircuitBreaker
	from     string
	operator string
}

func NewService(cfg Config, log *logger.Logger) Service {
	return newService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, log)
}

func newService(m mailer, cfg Config, log *logger.Logger) *smtpService {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	operator := cfg.Operator
	if operator == "" {
		operator = from
	}

	return &smtpService{
		mailer: m,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}, log),
		from:     from,
		operator: operator,
	}
}

func (s *smtpService) SendReservation(ctx context.Context, r model.Reservation) error {
	body, err := RenderReservation(r)
	if err != nil {
		return err
	}
	return s.SendCustom(ctx, s.operator, ReservationSubject, body)
}

// SendCustom sends an HTML mail. gomail has no context support, so ctx only
// bounds how long the caller waits; the dial itself keeps going in the background.
func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	done := make(chan error, 1)
	go func() {
		done <- s.breaker.Execute(func() error {
			return s.mailer.DialAndSend(m)
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send mail to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send mail to %s: %w", to, ctx.Err())
	}
}

var reservationTmpl = template.Must(template.New("reservation").Parse(`
<p>¡Hola Barbero!</p>
<p>Se ha realizado una nueva reserva en tu barbería:</p>
<ul>
    <li><strong>Nombre:</strong> {{.ClientName}}</li>
    <li><strong>Teléfono:</strong> {{.ClientPhone}}</li>
    <li><strong>Email:</strong> {{if .ClientEmail}}{{.ClientEmail}}{{else}}No proporcionado{{end}}</li>
    <li><strong>Servicio:</strong> {{.Service}}</li>
    <li><strong>Fecha:</strong> {{.Date}}</li>
    <li><strong>Hora:</strong> {{.Time}}</li>
</ul>
<p>¡Que tengas un buen día!</p>
<p>Sistema de Reservas de Mateo's Barber</p>
`))

// RenderReservation builds the HTML body of the operator notice. Client
// supplied values are escaped.
func RenderReservation(r model.Reservation) (string, error) {
	var buf bytes.Buffer
	err := reservationTmpl.Execute(&buf, struct {
		model.Reservation
		ClientEmail string
	}{
		Reservation: r,
		ClientEmail: r.EmailOrEmpty(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render reservation mail: %w", err)
	}
	return buf.String(), nil
}
