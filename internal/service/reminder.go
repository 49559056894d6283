package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"vocadrill/internal/models"
	"vocadrill/internal/repository"
)

// reminderWeakListSize caps how many weak items a reminder email names.
const reminderWeakListSize = 10

// ReminderService sends daily practice reminder emails via Amazon SES.
// The reminder names the weakest items and the day's progress so far.
type ReminderService struct {
	client        *sesv2.Client
	fromEmail     string
	fromName      string
	toEmail       string
	weakThreshold int
	enabled       bool

	items *repository.ItemRepository
	log   *repository.PracticeLogRepository
}

// NewReminderService creates a reminder service. When no sender address
// is configured the service is created disabled and Send becomes a no-op.
func NewReminderService(ctx context.Context, awsRegion, fromEmail, fromName, toEmail string, weakThreshold int, items *repository.ItemRepository, practiceLog *repository.PracticeLogRepository) (*ReminderService, error) {
	if fromEmail == "" || toEmail == "" {
		log.Println("Reminder service disabled: sender or recipient not configured")
		return &ReminderService{
			enabled: false,
			items:   items,
			log:     practiceLog,
		}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(awsRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &ReminderService{
		client:        sesv2.NewFromConfig(cfg),
		fromEmail:     fromEmail,
		fromName:      fromName,
		toEmail:       toEmail,
		weakThreshold: weakThreshold,
		enabled:       true,
		items:         items,
		log:           practiceLog,
	}, nil
}

// Enabled reports whether the service will actually send email.
func (s *ReminderService) Enabled() bool {
	return s.enabled
}

// Send composes and sends the daily reminder.
func (s *ReminderService) Send(ctx context.Context) error {
	if !s.enabled {
		log.Println("Skipping reminder send (service disabled)")
		return nil
	}

	weak, total, err := s.weakItems(ctx)
	if err != nil {
		return err
	}
	today, err := s.log.Today(ctx)
	if err != nil {
		return fmt.Errorf("failed to read practice log: %w", err)
	}

	subject, htmlBody, textBody := composeReminder(weak, total, today)
	return s.sendEmail(ctx, subject, htmlBody, textBody)
}

// weakItems returns the weakest items at or below the threshold,
// ascending by proficiency, plus the total collection size.
func (s *ReminderService) weakItems(ctx context.Context) ([]models.Item, int, error) {
	all, err := s.items.All(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read items: %w", err)
	}
	weak := make([]models.Item, 0, len(all))
	for _, item := range all {
		if item.Proficiency <= s.weakThreshold {
			weak = append(weak, item)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		return weak[i].Proficiency < weak[j].Proficiency
	})
	if len(weak) > reminderWeakListSize {
		weak = weak[:reminderWeakListSize]
	}
	return weak, len(all), nil
}

func composeReminder(weak []models.Item, total int, today models.PracticeLogEntry) (subject, htmlBody, textBody string) {
	practiced := len(today.ItemIDs)
	subject = fmt.Sprintf("Practice reminder: %d items need attention", len(weak))

	var weakLines strings.Builder
	var weakHTML strings.Builder
	for _, item := range weak {
		weakLines.WriteString(fmt.Sprintf("- %s (%d)\n", item.Text, item.Proficiency))
		weakHTML.WriteString(fmt.Sprintf("<li>%s (%d)</li>", item.Text, item.Proficiency))
	}

	htmlBody = fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h2>Time to practice!</h2>
	<p>You have practiced %d of %d items today (%d correct).</p>
	<p>Your weakest items:</p>
	<ul>%s</ul>
	<p style="font-size: 12px; color: #666;">This is an automated reminder. Please do not reply.</p>
</body>
</html>`, practiced, total, today.CorrectCount, weakHTML.String())

	textBody = fmt.Sprintf(`Time to practice!

You have practiced %d of %d items today (%d correct).

Your weakest items:
%s
---
This is an automated reminder. Please do not reply.
`, practiced, total, today.CorrectCount, weakLines.String())

	return subject, htmlBody, textBody
}

// sendEmail sends an email using Amazon SES.
func (s *ReminderService) sendEmail(ctx context.Context, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send reminder email: %w", err)
	}

	log.Printf("Reminder email sent to %s", s.toEmail)
	return nil
}
