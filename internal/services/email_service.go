package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESEmailService sends verification emails through AWS SES
type SESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewSESEmailService creates a new SES-backed email sender
func NewSESEmailService(region, fromAddress, baseURL string, logger *slog.Logger) (*SESEmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

// SendVerificationEmail sends the account verification link to the user
func (s *SESEmailService) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	verificationLink := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)
	validFor := time.Until(expiresAt).Round(time.Hour)

	htmlBody := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #1a1a1a; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #0b3d2e; color: #fff; padding: 20px; text-align: center; border-radius: 4px; }
        .button { display: inline-block; background-color: #0b3d2e; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Welcome to Touchline</h1>
        </div>
        <p>Thanks for signing up. Confirm your email address to activate your account:</p>
        <p><a href="%s" class="button">Verify Email Address</a></p>
        <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
        <p>This link expires in %s.</p>
        <p>If you didn't create a Touchline account, you can ignore this email.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply.</p>
        </div>
    </div>
</body>
</html>
`, verificationLink, verificationLink, validFor)

	textBody := fmt.Sprintf(`Welcome to Touchline

Thanks for signing up. Confirm your email address to activate your account:

%s

This link expires in %s.

If you didn't create a Touchline account, you can ignore this email.
`, verificationLink, validFor)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Verify your Touchline account"),
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
		s.logger.Error("failed to send verification email via SES",
			slog.String("email", email),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("verification email sent",
		slog.String("email", email),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
