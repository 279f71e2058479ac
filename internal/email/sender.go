package email

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/oncobrief/oncobrief/internal/config"
	"github.com/oncobrief/oncobrief/internal/domain"
	"github.com/oncobrief/oncobrief/internal/observability"
)

// addressPattern is a light sanity check, not full RFC 5322 validation.
var addressPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidAddress reports whether the recipient address looks deliverable.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// smtpClient abstracts the go-mail client for tests.
type smtpClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Sender delivers digest and diagnostic emails over SMTP. Send failures
// surface to the caller directly; there is no retry queue.
type Sender struct {
	client  smtpClient
	cfg     config.EmailConfig
	logger  zerolog.Logger
	metrics *observability.Metrics

	now func() time.Time
}

// NewSender creates an SMTP sender from the email configuration.
func NewSender(cfg config.EmailConfig, logger zerolog.Logger, metrics *observability.Metrics) (*Sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}

	return newSender(client, cfg, logger, metrics), nil
}

func newSender(client smtpClient, cfg config.EmailConfig, logger zerolog.Logger, metrics *observability.Metrics) *Sender {
	return &Sender{
		client:  client,
		cfg:     cfg,
		logger:  logger.With().Str("component", "email").Logger(),
		metrics: metrics,
		now:     time.Now,
	}
}

// SendDigest renders and delivers the digest email to one recipient.
// Podcast may be nil.
func (s *Sender) SendDigest(ctx context.Context, to string, digest *domain.Digest, articles []*domain.Article, podcast *domain.Podcast) error {
	if !ValidAddress(to) {
		return domain.NewValidationError("recipientEmail", "invalid email address")
	}
	if len(articles) == 0 {
		return domain.NewValidationError("articles", "no articles to send")
	}

	subject, body, err := ComposeDigest(digest, articles, podcast, s.cfg.BaseURL)
	if err != nil {
		return err
	}

	return s.send(ctx, to, subject, body)
}

// SendTest delivers the diagnostic email to one recipient.
func (s *Sender) SendTest(ctx context.Context, to string) error {
	if !ValidAddress(to) {
		return domain.NewValidationError("to", "invalid email address")
	}

	subject, body, err := ComposeTest(s.now())
	if err != nil {
		return err
	}

	return s.send(ctx, to, subject, body)
}

func (s *Sender) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.metrics.EmailsFailed.Inc()
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.metrics.EmailsSent.Inc()
	s.logger.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
