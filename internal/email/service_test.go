package email

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/barber-api/internal/model"
	"github.com/jwalitptl/barber-api/pkg/logger"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []*gomail.Message
	err   error
	delay time.Duration
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func sampleReservation() model.Reservation {
	email := "juan@example.com"
	return model.Reservation{
		ID:          1,
		Date:        "2024-06-10",
		Time:        "14:00",
		Service:     "Corte",
		ClientName:  "Juan",
		ClientPhone: "555-1111",
		ClientEmail: &email,
	}
}

func TestRenderReservation(t *testing.T) {
	body, err := RenderReservation(sampleReservation())
	require.NoError(t, err)

	assert.Contains(t, body, "<strong>Nombre:</strong> Juan")
	assert.Contains(t, body, "<strong>Teléfono:</strong> 555-1111")
	assert.Contains(t, body, "<strong>Email:</strong> juan@example.com")
	assert.Contains(t, body, "<strong>Fecha:</strong> 2024-06-10")
	assert.Contains(t, body, "<strong>Hora:</strong> 14:00")
}

func TestRenderReservation_NoEmail(t *testing.T) {
	r := sampleReservation()
	r.ClientEmail = nil

	body, err := RenderReservation(r)
	require.NoError(t, err)
	assert.Contains(t, body, "<strong>Email:</strong> No proporcionado")
}

func TestRenderReservation_EscapesClientInput(t *testing.T) {
	r := sampleReservation()
	r.ClientName = `<script>alert(1)</script>`

	body, err := RenderReservation(r)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestSendReservation(t *testing.T) {
	fm := &fakeMailer{}
	svc := newService(fm, Config{Username: "mateosbarber@example.com"}, logger.Nop())

	require.NoError(t, svc.SendReservation(context.Background(), sampleReservation()))
	require.Len(t, fm.sent, 1)

	msg := fm.sent[0]
	assert.Equal(t, []string{"mateosbarber@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"mateosbarber@example.com"}, msg.GetHeader("To"))
	// gomail Q-encodes non-ASCII headers when they are set
	subjects := msg.GetHeader("Subject")
	require.Len(t, subjects, 1)
	subject, err := new(mime.WordDecoder).DecodeHeader(subjects[0])
	require.NoError(t, err)
	assert.Equal(t, ReservationSubject, subject)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "text/html")
}

func TestSendCustom_Error(t *testing.T) {
	fm := &fakeMailer{err: errors.New("535 auth failed")}
	svc := newService(fm, Config{Username: "a@example.com"}, logger.Nop())

	err := svc.SendCustom(context.Background(), "b@example.com", "hola", "<p>hola</p>")
	assert.ErrorContains(t, err, "535 auth failed")
}

func TestSendCustom_ContextDeadline(t *testing.T) {
	fm := &fakeMailer{delay: 200 * time.Millisecond}
	svc := newService(fm, Config{Username: "a@example.com"}, logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := svc.SendCustom(ctx, "b@example.com", "hola", "<p>hola</p>")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
