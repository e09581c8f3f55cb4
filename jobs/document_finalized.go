package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/garagedesk/garagedesk/internal/documents"
	jobmetrics "github.com/garagedesk/garagedesk/internal/jobs"
)

// Notification is the rendered message for a finalized document.
type Notification struct {
	Subject string
	Body    string
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// LogSender writes notifications to the logger.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("document notification", slog.String("subject", n.Subject), slog.String("body", n.Body))
	return nil
}

// NotificationConfig configures the finalized-document job.
type NotificationConfig struct {
	Locale   string
	Currency string
	Sender   Sender
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// DocumentFinalizedJob renders and sends the notification for a finalized
// document.
type DocumentFinalizedJob struct {
	printer *message.Printer
	unit    currency.Unit
	sender  Sender
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewDocumentFinalizedJob validates the locale and currency code.
func NewDocumentFinalizedJob(cfg NotificationConfig) (*DocumentFinalizedJob, error) {
	tag := language.English
	if cfg.Locale != "" {
		parsed, err := language.Parse(cfg.Locale)
		if err != nil {
			return nil, fmt.Errorf("jobs: invalid locale %q: %w", cfg.Locale, err)
		}
		tag = parsed
	}
	unit := currency.USD
	if cfg.Currency != "" {
		parsed, err := currency.ParseISO(cfg.Currency)
		if err != nil {
			return nil, fmt.Errorf("jobs: invalid currency %q: %w", cfg.Currency, err)
		}
		unit = parsed
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sender := cfg.Sender
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &DocumentFinalizedJob{
		printer: message.NewPrinter(tag),
		unit:    unit,
		sender:  sender,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Handle processes TaskDocumentFinalized tasks.
func (j *DocumentFinalizedJob) Handle(ctx context.Context, t *asynq.Task) error {
	var event documents.FinalizedEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		j.logger.Warn("decode finalized document payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	tracker := j.metrics.Track(TaskDocumentFinalized)
	if err := j.sender.Send(ctx, j.Render(event)); err != nil {
		return tracker.End(fmt.Errorf("send notification for %s: %w", event.DocNumber, err))
	}
	j.metrics.AddNotification(string(event.Kind))
	return tracker.End(nil)
}

// Render builds the notification text.
func (j *DocumentFinalizedJob) Render(event documents.FinalizedEvent) Notification {
	label := "Invoice"
	if event.Kind == documents.KindQuotation {
		label = "Quotation"
	}
	amount := j.FormatAmount(event.GrandTotal)
	return Notification{
		Subject: fmt.Sprintf("%s %s finalized", label, event.DocNumber),
		Body: j.printer.Sprintf("%s %s was finalized on %s with a grand total of %s.",
			label, event.DocNumber, event.FinalizedAt.Format("2006-01-02"), amount),
	}
}

// FormatAmount renders a money amount in the configured locale and currency.
func (j *DocumentFinalizedJob) FormatAmount(amount float64) string {
	return j.printer.Sprint(currency.Symbol(j.unit.Amount(amount)))
}
