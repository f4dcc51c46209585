package models

import "encoding/json"

// Webhook types. Only TypeWebhook is delivered over HTTP by the dispatcher;
// the others are kept for the integrations that share the table.
const (
	TypeWebhook = "webhook"
	TypeSlack   = "slack"
	TypeEmail   = "email"
	TypeMSTeams = "msteams"
)

func ValidWebhookType(t string) bool {
	switch t {
	case TypeWebhook, TypeSlack, TypeEmail, TypeMSTeams:
		return true
	}
	return false
}

type Webhook struct {
	WebhookID  int64  `json:"webhookId"`
	TenantID   int64  `json:"tenantId"`
	Endpoint   string `json:"endpoint"`
	AuthHeader string `json:"authHeader"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Index      int    `json:"index"`
	CreatedAt  int64  `json:"createdAt"`
}

// Notification is one entry of a dispatch batch: the payload is sent
// verbatim to the webhook identified by Destination.
type Notification struct {
	Destination int64           `json:"destination"`
	Data        json.RawMessage `json:"data"`
}
