package bootstrap

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/cosmetica/clinic-booking/internal/config"
	"github.com/cosmetica/clinic-booking/internal/messaging"
	"github.com/cosmetica/clinic-booking/internal/notify"
	"github.com/cosmetica/clinic-booking/internal/observability/metrics"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

const memoryQueueBuffer = 256

// Notifications bundles the notification channel. Worker is nil when the
// queue is consumed by a separate process.
type Notifications struct {
	Dispatcher *notify.Dispatcher
	Publisher  *notify.Publisher
	Worker     *notify.Worker
}

// BuildEmailSender selects the staff email provider. It returns nil when no
// staff recipients are configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if len(cfg.StaffEmails) == 0 {
		return nil
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	case "ses":
		if awsCfg != nil {
			return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("ses selected without aws config; staff email disabled")
	}
	return notify.NewLogEmailSender(logger)
}

// BuildDispatcher wires the Twilio sender, template SIDs and staff email copy.
func BuildDispatcher(cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.BookingMetrics, logger *logging.Logger) (*notify.Dispatcher, error) {
	sender, err := messaging.NewWhatsAppSender(messaging.WhatsAppConfig{
		AccountSID:     cfg.TwilioAccountSID,
		AuthToken:      cfg.TwilioAuthToken,
		From:           cfg.TwilioWhatsAppFrom,
		BaseURL:        cfg.TwilioBaseURL,
		StatusCallback: cfg.TwilioStatusCallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: whatsapp sender: %w", err)
	}

	opts := []notify.DispatcherOption{notify.WithDispatchMetrics(m)}
	if email := BuildEmailSender(cfg, awsCfg, logger); email != nil {
		opts = append(opts, notify.WithStaffEmail(email))
	}
	return notify.NewDispatcher(sender, notify.DispatcherConfig{
		Clinic: notify.Clinic{Name: cfg.ClinicName, ContactPhone: cfg.ClinicContactPhone},
		Templates: map[notify.Kind]string{
			notify.KindConfirm: cfg.TwilioTemplateConfirm,
			notify.KindCancel:  cfg.TwilioTemplateCancel,
		},
		StaffEmails: cfg.StaffEmails,
	}, logger, opts...), nil
}

// BuildNotifications selects the memory or SQS channel. With the memory queue
// the worker runs in-process; with SQS, consume says whether this process runs it.
func BuildNotifications(cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.BookingMetrics, logger *logging.Logger, consume bool) (*Notifications, error) {
	dispatcher, err := BuildDispatcher(cfg, awsCfg, m, logger)
	if err != nil {
		return nil, err
	}
	out := &Notifications{Dispatcher: dispatcher}

	if cfg.UseMemoryQueue {
		queue := notify.NewMemoryQueue(memoryQueueBuffer)
		out.Publisher = notify.NewPublisher(queue, logger)
		out.Worker = notify.NewWorker(queue, dispatcher, logger, notify.WithSendTimeout(cfg.NotifyTimeout))
		return out, nil
	}

	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: aws config required for NOTIFICATION_QUEUE_URL")
	}
	queue := notify.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.NotificationQueueURL)
	out.Publisher = notify.NewPublisher(queue, logger)
	if consume {
		out.Worker = notify.NewWorker(queue, dispatcher, logger,
			notify.WithWorkerCount(2),
			notify.WithReceiveWaitSeconds(20),
			notify.WithReceiveBatchSize(10),
			notify.WithSendTimeout(cfg.NotifyTimeout),
		)
	}
	return out, nil
}
