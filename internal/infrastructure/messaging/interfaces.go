// Package messaging provides the real-time channels between the server, its
// tracked clients, and the observers watching them.
package messaging

// Envelope is the wire frame for every event on either channel.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// NotificationSink receives out-of-band notifications about session milestones.
// Delivery is best effort; failures are logged, never surfaced to clients.
type NotificationSink interface {
	Notify(subject, body string)
}

// ReputationService answers whether a network address is barred from service.
type ReputationService interface {
	IsBanned(networkAddress string) bool
}
