package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	htmlTemplate "html/template"
	"os"
	"path/filepath"
	textTemplate "text/template"
	"time"

	"github.com/synergypro/verifyd/config"
	"github.com/synergypro/verifyd/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

//go:embed templates/*.html templates/*.txt
var defaultTemplates embed.FS

var ErrTemplateNotFound = errors.New("mail template not found")

// MailClient is the part of *mail.Client the service depends on.
type MailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config        *config.MailConfig
	client        MailClient
	htmlTemplates *htmlTemplate.Template
	textTemplates *textTemplate.Template
	logger        *logging.Service
}

type TemplateData map[string]any

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	client, err := newSMTPClient(cfg)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client MailClient) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	service := &Service{
		config: cfg,
		client: client,
		logger: logger,
	}

	if err := service.loadTemplates(); err != nil {
		logger.Error("failed to load mail templates", zap.Error(err))
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	logger.Info("mail service initialized",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	return service, nil
}

func newSMTPClient(cfg *config.MailConfig) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(15 * time.Second),
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case "opportunistic":
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	return mail.NewClient(cfg.Host, opts...)
}

// loadTemplates parses the built-in templates, then lets files in
// TemplatesDir override or extend them by name.
func (s *Service) loadTemplates() error {
	var err error
	s.htmlTemplates, err = htmlTemplate.ParseFS(defaultTemplates, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse built-in HTML templates: %w", err)
	}
	s.textTemplates, err = textTemplate.ParseFS(defaultTemplates, "templates/*.txt")
	if err != nil {
		return fmt.Errorf("failed to parse built-in text templates: %w", err)
	}

	dir := s.config.TemplatesDir
	if dir == "" {
		return nil
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		s.logger.Warn("mail templates directory not found, using built-in templates", zap.String("templates_dir", dir))
		return nil
	}

	if matches, _ := filepath.Glob(filepath.Join(dir, "*.html")); len(matches) > 0 {
		if _, err := s.htmlTemplates.ParseFiles(matches...); err != nil {
			return fmt.Errorf("failed to parse HTML templates: %w", err)
		}
	}
	if matches, _ := filepath.Glob(filepath.Join(dir, "*.txt")); len(matches) > 0 {
		if _, err := s.textTemplates.ParseFiles(matches...); err != nil {
			return fmt.Errorf("failed to parse text templates: %w", err)
		}
	}

	s.logger.Info("mail templates loaded",
		zap.String("templates_dir", dir),
		zap.Int("html_templates", len(s.htmlTemplates.Templates())),
		zap.Int("text_templates", len(s.textTemplates.Templates())))

	return nil
}

func (s *Service) NewMessage() (*mail.Msg, error) {
	message := mail.NewMsg()

	var err error
	if s.config.FromName != "" {
		err = message.FromFormat(s.config.FromName, s.config.FromAddress)
	} else {
		err = message.From(s.config.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}

	return message, nil
}

func (s *Service) Send(ctx context.Context, message *mail.Msg) error {
	start := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error("failed to send email", zap.Error(err), zap.Duration("attempt_duration", duration))
		return err
	}

	s.logger.Info("email sent", zap.Duration("send_duration", duration))
	return nil
}

func (s *Service) SendTemplate(ctx context.Context, templateName string, to []string, subject string, data TemplateData) error {
	message, err := s.newAddressedMessage(to, subject)
	if err != nil {
		return err
	}

	if err := s.renderTemplate(templateName, data, message); err != nil {
		s.logger.Error("failed to render template", zap.Error(err), zap.String("template", templateName))
		return fmt.Errorf("failed to render template: %w", err)
	}

	return s.Send(ctx, message)
}

func (s *Service) SendPlain(ctx context.Context, to []string, subject, body string) error {
	message, err := s.newAddressedMessage(to, subject)
	if err != nil {
		return err
	}
	message.SetBodyString(mail.TypeTextPlain, body)

	return s.Send(ctx, message)
}

func (s *Service) newAddressedMessage(to []string, subject string) (*mail.Msg, error) {
	message, err := s.NewMessage()
	if err != nil {
		return nil, err
	}

	if err := message.To(to...); err != nil {
		return nil, fmt.Errorf("failed to set TO addresses: %w", err)
	}
	message.Subject(subject)

	return message, nil
}

func (s *Service) renderTemplate(templateName string, data TemplateData, message *mail.Msg) error {
	var rendered bool

	if tmpl := s.htmlTemplates.Lookup(templateName + ".html"); tmpl != nil {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute HTML template: %w", err)
		}
		message.SetBodyString(mail.TypeTextHTML, buf.String())
		rendered = true
	}

	if tmpl := s.textTemplates.Lookup(templateName + ".txt"); tmpl != nil {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return fmt.Errorf("failed to execute text template: %w", err)
		}
		if rendered {
			message.AddAlternativeString(mail.TypeTextPlain, buf.String())
		} else {
			message.SetBodyString(mail.TypeTextPlain, buf.String())
		}
		rendered = true
	}

	if !rendered {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, templateName)
	}
	return nil
}
