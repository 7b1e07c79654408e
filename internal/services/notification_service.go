package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pkglogger "github.com/BradenHooton/shopguard/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// LockoutNotifier tells an account owner their login was temporarily blocked
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, email string, blockedUntil time.Time) error
}

// SESClient is the subset of the SES API used for lockout notices
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESLockoutNotifier sends lockout notices using AWS SES
type SESLockoutNotifier struct {
	sesClient   SESClient
	fromAddress string
	logger      *slog.Logger
}

// NewSESLockoutNotifier loads the default AWS config for region and creates a notifier
func NewSESLockoutNotifier(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*SESLockoutNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewSESLockoutNotifierWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewSESLockoutNotifierWithClient creates a notifier around an existing SES client
func NewSESLockoutNotifierWithClient(client SESClient, fromAddress string, logger *slog.Logger) *SESLockoutNotifier {
	return &SESLockoutNotifier{
		sesClient:   client,
		fromAddress: fromAddress,
		logger:      logger,
	}
}

// NotifyLockout sends the lockout notice to email
func (n *SESLockoutNotifier) NotifyLockout(ctx context.Context, email string, blockedUntil time.Time) error {
	until := blockedUntil.UTC().Format(time.RFC1123)

	textBody := fmt.Sprintf(`Sign-in temporarily blocked

We noticed several failed sign-in attempts on your account, so new sign-ins are blocked until %s.

If this was you, wait until then and try again. If it was not, consider changing your password once the block lifts.

This is an automated message. Please do not reply to this email.
`, until)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <h2>Sign-in temporarily blocked</h2>
    <p>We noticed several failed sign-in attempts on your account, so new sign-ins are blocked until <strong>%s</strong>.</p>
    <p>If this was you, wait until then and try again. If it was not, consider changing your password once the block lifts.</p>
    <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`, until)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Sign-in temporarily blocked"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send lockout email: %w", err)
	}

	n.logger.Info("lockout notice sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// NoopLockoutNotifier discards lockout notices
type NoopLockoutNotifier struct{}

// NotifyLockout does nothing
func (NoopLockoutNotifier) NotifyLockout(context.Context, string, time.Time) error {
	return nil
}
