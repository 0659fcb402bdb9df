package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/synergypro/verifyd/services/mail"
)

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) SendTemplate(ctx context.Context, templateName string, to []string, subject string, data mail.TemplateData) error {
	args := m.Called(ctx, templateName, to, subject, data)
	return args.Error(0)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, phone, body string) error {
	args := m.Called(ctx, phone, body)
	return args.Error(0)
}
