// Package queue defines the domain events exchanged over RabbitMQ together
// with their publisher and consumer.
package queue

// Queue names. Each event type has its own durable queue on the default
// exchange, so the routing key equals the queue name.
const (
    QueueUserLoggedIn  = "user.logged_in"
    QueueVideoAssigned = "video.assigned"
    QueueVideoWatched  = "video.watched"
)

// Queues lists every queue the consumer declares.
var Queues = []string{QueueUserLoggedIn, QueueVideoAssigned, QueueVideoWatched}

// UserLoggedInEvent is published after a login code is exchanged for a
// session credential.
type UserLoggedInEvent struct {
    UserID     string `json:"user_id"`
    Email      string `json:"email"`
    IPAddress  string `json:"ip_address,omitempty"`
    FirstLogin bool   `json:"first_login"`
    LoggedInAt string `json:"logged_in_at"`
}

// VideoAssignedEvent is published when an administrator grants or renews
// access. The consumer turns it into a notification e-mail.
type VideoAssignedEvent struct {
    UserID     string  `json:"user_id"`
    Email      string  `json:"email"`
    FirstName  string  `json:"first_name,omitempty"`
    VideoID    uint64  `json:"video_id"`
    VideoTitle string  `json:"video_title"`
    AccessType string  `json:"access_type"`
    ExpiresAt  *string `json:"expires_at,omitempty"`
    Notes      *string `json:"notes,omitempty"`
    AssignedAt string  `json:"assigned_at"`
}

// VideoWatchedEvent is published for every recorded watch.
type VideoWatchedEvent struct {
    UserID               string  `json:"user_id"`
    VideoID              uint64  `json:"video_id"`
    Position             *int    `json:"position,omitempty"`
    CompletionPercentage float64 `json:"completion_percentage"`
    Completed            bool    `json:"completed"`
    WatchedAt            string  `json:"watched_at"`
}
