package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSESLockoutNotifier_SendsNotice(t *testing.T) {
	var captured *ses.SendEmailInput
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			captured = params
			return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	notifier := NewSESLockoutNotifierWithClient(client, "security@shop.example", slog.New(slog.NewTextHandler(io.Discard, nil)))

	until := time.Date(2026, 5, 4, 10, 15, 0, 0, time.UTC)
	err := notifier.NotifyLockout(context.Background(), "user@example.com", until)

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "security@shop.example", aws.ToString(captured.Source))
	assert.Equal(t, []string{"user@example.com"}, captured.Destination.ToAddresses)
	assert.Equal(t, "Sign-in temporarily blocked", aws.ToString(captured.Message.Subject.Data))
	assert.Contains(t, aws.ToString(captured.Message.Body.Text.Data), "Mon, 04 May 2026 10:15:00 UTC")
}

func TestSESLockoutNotifier_WrapsSendError(t *testing.T) {
	sendErr := errors.New("throttled")
	client := &MockSESClient{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, sendErr
		},
	}
	notifier := NewSESLockoutNotifierWithClient(client, "security@shop.example", slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := notifier.NotifyLockout(context.Background(), "user@example.com", time.Now())

	assert.ErrorIs(t, err, sendErr)
}

func TestNoopLockoutNotifier(t *testing.T) {
	assert.NoError(t, NoopLockoutNotifier{}.NotifyLockout(context.Background(), "a@b.c", time.Now()))
}
