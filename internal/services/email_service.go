package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

// EmailService defines the interface for sending transactional emails
type EmailService interface {
	SendVerificationEmail(ctx context.Context, email, code string, expiryMinutes int) error
	SendPasswordResetEmail(ctx context.Context, email, code string, expiryMinutes int) error
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	appName     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(region, fromAddress, appName string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		appName:     appName,
		logger:      logger,
	}, nil
}

// SendVerificationEmail delivers a 6-digit email verification code.
func (s *AWSSESEmailService) SendVerificationEmail(ctx context.Context, email, code string, expiryMinutes int) error {
	subject := fmt.Sprintf("%s: verify your email address", s.appName)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px; background-color: #f8f9fa; border-radius: 4px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Verify your email address</h1>
        <p>Thank you for creating an account. Enter this code to complete your registration:</p>
        <p class="code">%s</p>
        <p>This code expires in %d minutes.</p>
        <p>If you didn't sign up for this account, you can ignore this email.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, code, expiryMinutes)

	textBody := fmt.Sprintf(`Verify your email address

Thank you for creating an account. Enter this code to complete your registration:

%s

This code expires in %d minutes.

If you didn't sign up for this account, you can ignore this email.
`, code, expiryMinutes)

	return s.send(ctx, email, subject, htmlBody, textBody)
}

// SendPasswordResetEmail delivers a 6-digit password reset code.
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, code string, expiryMinutes int) error {
	subject := fmt.Sprintf("%s: password reset code", s.appName)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .code { font-size: 32px; letter-spacing: 8px; font-weight: bold; text-align: center; padding: 16px; background-color: #f8f9fa; border-radius: 4px; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Password reset requested</h1>
        <p>We received a request to reset your password. Enter this code to choose a new one:</p>
        <p class="code">%s</p>
        <p>This code expires in %d minutes.</p>
        <p>If you didn't request a password reset, you can ignore this email. Your password will not change.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, code, expiryMinutes)

	textBody := fmt.Sprintf(`Password reset requested

We received a request to reset your password. Enter this code to choose a new one:

%s

This code expires in %d minutes.

If you didn't request a password reset, you can ignore this email. Your password will not change.
`, code, expiryMinutes)

	return s.send(ctx, email, subject, htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, email, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
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

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(email)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
