package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent names a subscribable event class.
type WebhookEvent string

const (
	WebhookEventLicenseExpired   WebhookEvent = "license.expired"
	WebhookEventLicenseSuspended WebhookEvent = "license.suspended"
	WebhookEventAlertRaised      WebhookEvent = "alert.raised"
	WebhookEventAlertResolved    WebhookEvent = "alert.resolved"
	WebhookEventAgentOffline     WebhookEvent = "agent.offline"
)

// ValidWebhookEvents returns all subscribable events.
func ValidWebhookEvents() []WebhookEvent {
	return []WebhookEvent{
		WebhookEventLicenseExpired,
		WebhookEventLicenseSuspended,
		WebhookEventAlertRaised,
		WebhookEventAlertResolved,
		WebhookEventAgentOffline,
	}
}

// IsValid checks if the event is one of the known events.
func (e WebhookEvent) IsValid() bool {
	for _, valid := range ValidWebhookEvents() {
		if e == valid {
			return true
		}
	}
	return false
}

// Webhook is an outbound notification subscription owned by an organization.
type Webhook struct {
	ID            uuid.UUID      `json:"id"`
	OrgID         uuid.UUID      `json:"org_id"`
	URL           string         `json:"url"`
	Events        []WebhookEvent `json:"events"`
	Secret        string         `json:"-"`
	IsActive      bool           `json:"is_active"`
	LastTriggered *time.Time     `json:"last_triggered,omitempty"`
	SuccessCount  int64          `json:"success_count"`
	FailureCount  int64          `json:"failure_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewWebhook creates an active webhook subscription.
func NewWebhook(orgID uuid.UUID, url, secret string, events []WebhookEvent) *Webhook {
	now := time.Now()
	return &Webhook{
		ID:        uuid.New(),
		OrgID:     orgID,
		URL:       url,
		Events:    events,
		Secret:    secret,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SubscribesTo reports whether the webhook wants the given event.
func (w *Webhook) SubscribesTo(event WebhookEvent) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// CreateWebhookRequest is the request body for registering a webhook.
type CreateWebhookRequest struct {
	URL    string         `json:"url" binding:"required,url"`
	Events []WebhookEvent `json:"events" binding:"required,min=1"`
}
