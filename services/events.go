package services

import "github.com/playforge/esports-platform/models"

// LifecycleEvent — событие жизненного цикла заявки, передаваемое подписчикам
// (диспетчер уведомлений, websocket-хаб). Несёт всё, что нужно для доставки,
// чтобы подписчикам не приходилось ходить в БД.
type LifecycleEvent struct {
	Type           models.EventType `json:"type"`
	TournamentID   int              `json:"tournament_id"`
	TournamentName string           `json:"tournament_name"`
	RegistrationID int              `json:"registration_id"`
	TeamName       string           `json:"team_name"`
	Recipient      string           `json:"recipient"`
	Reason         string           `json:"reason,omitempty"`
}

// EventPublisher потребляет события жизненного цикла. Публикация не должна
// блокировать и не влияет на исход вызвавшей операции: сбой доставки —
// забота подписчика, не движка.
type EventPublisher interface {
	Publish(event LifecycleEvent)
}

// FanoutPublisher рассылает событие нескольким подписчикам.
type FanoutPublisher []EventPublisher

func (f FanoutPublisher) Publish(event LifecycleEvent) {
	for _, p := range f {
		p.Publish(event)
	}
}

// NopPublisher используется там, где подписчики не нужны (тесты, CLI-утилиты).
type NopPublisher struct{}

func (NopPublisher) Publish(LifecycleEvent) {}
