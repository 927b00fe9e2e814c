package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/playforge/esports-platform/models"
	"github.com/playforge/esports-platform/repositories"
	"github.com/playforge/esports-platform/services"
)

// Sender — транспорт доставки. Возвращает непрозрачный идентификатор доставки.
type Sender interface {
	Send(ctx context.Context, templateID, recipient string, params map[string]string) (string, error)
}

// Dispatcher потребляет события жизненного цикла и доводит их до адресатов.
// Публикация — fire-and-forget для движка: событие превращается в запись
// очереди, доставкой и ретраями занимается воркер. Сбой доставки никогда
// не откатывает вызвавший его переход состояния.
type Dispatcher struct {
	repo        repositories.NotificationRepository
	sender      Sender
	clock       clockwork.Clock
	logger      *slog.Logger
	maxAttempts int
	baseBackoff time.Duration
	batchSize   int
}

func NewDispatcher(
	repo repositories.NotificationRepository,
	sender Sender,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		sender:      sender,
		clock:       clock,
		logger:      logger,
		maxAttempts: 5,
		baseBackoff: 30 * time.Second,
		batchSize:   100,
	}
}

var eventTemplates = map[models.EventType]string{
	models.EventRegistrationSubmitted: services.TemplateRegistrationSubmitted,
	models.EventRegistrationVerified:  services.TemplateRegistrationVerified,
	models.EventRegistrationRejected:  services.TemplateRegistrationRejected,
}

// Publish реализует services.EventPublisher.
func (d *Dispatcher) Publish(event services.LifecycleEvent) {
	templateID, ok := eventTemplates[event.Type]
	if !ok || event.Recipient == "" {
		return
	}

	params := map[string]string{
		"team_name":       event.TeamName,
		"tournament_name": event.TournamentName,
	}
	if event.Reason != "" {
		params["reason"] = event.Reason
	}

	n := &models.Notification{
		EventType:  event.Type,
		TemplateID: templateID,
		Recipient:  event.Recipient,
		Params:     params,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.repo.Enqueue(ctx, n); err != nil {
		d.logger.Error("failed to enqueue notification",
			slog.String("event_type", string(event.Type)),
			slog.Any("error", err),
		)
	}
}

// Dispatch — один проход воркера: взять созревшие записи очереди и попытаться
// доставить каждую. Возвращает число успешно отправленных.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	now := d.clock.Now()
	due, err := d.repo.ListDue(ctx, now, d.batchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, n := range due {
		deliveryID, err := d.sender.Send(ctx, n.TemplateID, n.Recipient, n.Params)
		if err != nil {
			d.recordFailure(ctx, n, err)
			continue
		}
		if err := d.repo.MarkSent(ctx, n.ID, deliveryID, d.clock.Now()); err != nil {
			d.logger.Error("failed to mark notification sent", slog.Int("id", n.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent, nil
}

// recordFailure фиксирует попытку: экспоненциальный бэкофф, пока не исчерпаны
// попытки, затем терминальный failed.
func (d *Dispatcher) recordFailure(ctx context.Context, n *models.Notification, sendErr error) {
	attempt := n.Attempts + 1
	var nextRetry *time.Time
	if attempt < d.maxAttempts {
		delay := d.baseBackoff << uint(attempt-1)
		at := d.clock.Now().Add(delay)
		nextRetry = &at
	}

	if err := d.repo.MarkAttemptFailed(ctx, n.ID, sendErr.Error(), nextRetry, d.clock.Now()); err != nil {
		d.logger.Error("failed to record notification failure", slog.Int("id", n.ID), slog.Any("error", err))
		return
	}
	d.logger.Warn("notification delivery failed",
		slog.Int("id", n.ID),
		slog.Int("attempt", attempt),
		slog.Bool("terminal", nextRetry == nil),
		slog.Any("error", sendErr),
	)
}

// RunWorker крутит Dispatch с заданным интервалом до отмены контекста.
func (d *Dispatcher) RunWorker(ctx context.Context, interval time.Duration) {
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := d.Dispatch(ctx); err != nil {
				d.logger.Error("notification dispatch pass failed", slog.Any("error", err))
			}
		}
	}
}
