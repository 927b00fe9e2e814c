package models

import "time"

// NotificationStatus — состояние доставки исходящего уведомления.
type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "queued"
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// EventType — типы событий жизненного цикла заявки.
type EventType string

const (
	EventRegistrationSubmitted EventType = "registration_submitted"
	EventRegistrationVerified  EventType = "registration_verified"
	EventRegistrationRejected  EventType = "registration_rejected"
)

// Notification — запись учёта доставки одного уведомления. Движок заявок
// только ставит уведомления в очередь; ретраи и бэкофф — забота диспетчера.
type Notification struct {
	ID         int                `json:"id" db:"id"`
	EventType  EventType          `json:"event_type" db:"event_type"`
	TemplateID string             `json:"template_id" db:"template_id"`
	Recipient  string             `json:"recipient" db:"recipient"`
	Params     map[string]string  `json:"params" db:"params"`
	Status     NotificationStatus `json:"status" db:"status"`
	Attempts   int                `json:"attempts" db:"attempts"`
	LastError  *string            `json:"last_error,omitempty" db:"last_error"`
	DeliveryID *string            `json:"delivery_id,omitempty" db:"delivery_id"`
	NextRetry  *time.Time         `json:"next_retry,omitempty" db:"next_retry"`
	CreatedAt  time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" db:"updated_at"`
}
