package email

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/wheels-api/internal/config"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(cfg config.EmailConfig, captured *[]capturedMail, sendErr error) *Service {
	s := NewService(cfg)
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*captured = append(*captured, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return sendErr
	}
	return s
}

func TestSendResetCode_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EmailConfig
	}{
		{"missing user", config.EmailConfig{AppPassword: "app-pass"}},
		{"missing app password", config.EmailConfig{User: "shop@gmail.com"}},
		{"missing both", config.EmailConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []capturedMail
			s := newTestService(tt.cfg, &sent, nil)

			err := s.SendResetCode(context.Background(), "driver@example.com", "123456")
			assert.ErrorIs(t, err, ErrNotConfigured)
			assert.Empty(t, sent)
		})
	}
}

func TestSendResetCode_Sends(t *testing.T) {
	var sent []capturedMail
	s := newTestService(config.EmailConfig{
		SMTPHost:    "smtp.gmail.com",
		SMTPPort:    "587",
		User:        "shop@gmail.com",
		AppPassword: "app-pass",
		AppName:     "Wheels",
	}, &sent, nil)

	err := s.SendResetCode(context.Background(), "driver@example.com", "482913")
	require.NoError(t, err)
	require.Len(t, sent, 1)

	mail := sent[0]
	assert.Equal(t, "smtp.gmail.com:587", mail.addr)
	assert.Equal(t, "shop@gmail.com", mail.from)
	assert.Equal(t, []string{"driver@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Wheels password reset code\r\n")
	assert.Contains(t, mail.msg, "482913")
	assert.Contains(t, mail.msg, "10 minutes")
}

func TestSendResetCode_UsesConfiguredFrom(t *testing.T) {
	var sent []capturedMail
	s := newTestService(config.EmailConfig{
		SMTPHost:    "smtp.gmail.com",
		SMTPPort:    "587",
		User:        "shop@gmail.com",
		AppPassword: "app-pass",
		From:        "Wheels <no-reply@wheels.example>",
		AppName:     "Wheels",
	}, &sent, nil)

	require.NoError(t, s.SendResetCode(context.Background(), "driver@example.com", "482913"))
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].msg, "From: Wheels <no-reply@wheels.example>\r\n"))
}

func TestSendResetCode_TransportFailure(t *testing.T) {
	var sent []capturedMail
	transportErr := errors.New("535 authentication failed")
	s := newTestService(config.EmailConfig{
		SMTPHost:    "smtp.gmail.com",
		SMTPPort:    "587",
		User:        "shop@gmail.com",
		AppPassword: "wrong",
		AppName:     "Wheels",
	}, &sent, transportErr)

	err := s.SendResetCode(context.Background(), "driver@example.com", "482913")
	assert.ErrorIs(t, err, transportErr)
}

func TestRenderResetCodeTemplate_EscapesAppName(t *testing.T) {
	body, err := renderResetCodeTemplate("<b>Wheels</b>", "000001")
	require.NoError(t, err)

	assert.Contains(t, body, "&lt;b&gt;Wheels&lt;/b&gt;")
	assert.Contains(t, body, "000001")
}
