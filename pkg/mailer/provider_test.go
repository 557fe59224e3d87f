package mailer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notemail/pkg/mailer"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Kind() mailer.Kind { return "mock" }

func (m *mockProvider) CheckAuthorized(cred mailer.Credential) bool {
	return m.Called(cred).Bool(0)
}

func (m *mockProvider) Send(ctx context.Context, cred mailer.Credential, msg mailer.Message) mailer.Result {
	return m.Called(ctx, cred, msg).Get(0).(mailer.Result)
}

var validMessage = mailer.Message{To: []string{"a@example.com"}, Subject: "s", HTML: "<p>x</p>"}

func TestSafeSend(t *testing.T) {
	t.Parallel()

	t.Run("delegates to provider", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{}
		cred := mailer.Credential{Token: "t", Authorized: true}
		p.On("CheckAuthorized", cred).Return(true)
		p.On("Send", mock.Anything, cred, validMessage).Return(mailer.Sent("id-1"))

		res := mailer.SafeSend(context.Background(), p, cred, validMessage)
		assert.True(t, res.Success)
		assert.Equal(t, "id-1", res.ProviderMessageID)
		p.AssertExpectations(t)
	})

	t.Run("invalid message is not sent", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{}
		res := mailer.SafeSend(context.Background(), p, mailer.Credential{}, mailer.Message{Subject: "s", HTML: "x"})
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, mailer.ErrNoRecipient)
		assert.ErrorIs(t, res.Err, mailer.ErrSendFailed)
		p.AssertNotCalled(t, "Send")
	})

	t.Run("unauthorized credential is not sent", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{}
		p.On("CheckAuthorized", mock.Anything).Return(false)

		res := mailer.SafeSend(context.Background(), p, mailer.Credential{}, validMessage)
		assert.ErrorIs(t, res.Err, mailer.ErrUnauthorized)
		p.AssertNotCalled(t, "Send")
	})

	t.Run("panic becomes failed result", func(t *testing.T) {
		t.Parallel()

		p := &mockProvider{}
		p.On("CheckAuthorized", mock.Anything).Return(true)
		p.On("Send", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("boom")
		})

		res := mailer.SafeSend(context.Background(), p, mailer.Credential{}, validMessage)
		assert.False(t, res.Success)
		assert.ErrorIs(t, res.Err, mailer.ErrSendFailed)
		assert.Contains(t, res.Err.Error(), "boom")
	})
}

func TestMessage(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, mailer.Message{}.Validate(), mailer.ErrNoRecipient)
	assert.ErrorIs(t, mailer.Message{To: []string{"a"}}.Validate(), mailer.ErrNoSubject)
	assert.ErrorIs(t, mailer.Message{To: []string{"a"}, Subject: "s"}.Validate(), mailer.ErrNoContent)
	assert.NoError(t, validMessage.Validate())

	assert.Equal(t, "x", validMessage.PlainText())
	withText := validMessage
	withText.Text = "given"
	assert.Equal(t, "given", withText.PlainText())
}

func TestFailed(t *testing.T) {
	t.Parallel()

	cause := errors.New("timeout")
	res := mailer.Failed(mailer.KindGmail, cause)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, cause)

	var se *mailer.SendError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, mailer.KindGmail, se.Provider)
	assert.Equal(t, "mailer: gmail: timeout", res.Err.Error())
}

func TestRecipient(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "John Doe <john@example.com>", mailer.Recipient("John Doe", "john@example.com"))
	assert.Equal(t, "john@example.com", mailer.Recipient("", "john@example.com"))
}
