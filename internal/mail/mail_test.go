package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestMailer_SendPasswordReset(t *testing.T) {
	sender := &recordingSender{}
	m, err := NewMailer(sender)
	require.NoError(t, err)

	url := "http://localhost:3000/api/v1/users/resetPassword/abc123"
	err = m.SendPasswordReset(context.Background(), Recipient{Name: "Jonas Schmedtmann", Email: "jonas@example.com"}, url)
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "jonas@example.com", msg.To)
	assert.Equal(t, "Your password reset token (valid for only 10 minutes)", msg.Subject)
	assert.Contains(t, msg.Text, url)
	assert.Contains(t, msg.HTML, url)
	assert.Contains(t, msg.HTML, "Hi Jonas,")
}

func TestMailer_SendWelcome(t *testing.T) {
	sender := &recordingSender{}
	m, err := NewMailer(sender)
	require.NoError(t, err)

	err = m.SendWelcome(context.Background(), Recipient{Name: "Ana", Email: "ana@example.com"}, "http://localhost:3000/me")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Welcome to the Natours Family!", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].HTML, "http://localhost:3000/me")
}

func TestMailer_PropagatesSenderError(t *testing.T) {
	boom := errors.New("smtp down")
	m, err := NewMailer(&recordingSender{err: boom})
	require.NoError(t, err)

	err = m.SendWelcome(context.Background(), Recipient{Name: "Ana", Email: "ana@example.com"}, "http://x/me")
	assert.ErrorIs(t, err, boom)
}

func TestRecipient_FirstName(t *testing.T) {
	assert.Equal(t, "Leo", Recipient{Name: "  Leo J. Gillespie"}.FirstName())
	assert.Equal(t, "", Recipient{}.FirstName())
}
