// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer for them.
package queue

// OTPRequestedQueue is the durable queue carrying sign-in code deliveries.
const OTPRequestedQueue = "auth.otp_requested"

// OTPRequestedEvent is published when a provider asks for a sign-in code.
// The consumer turns it into an email; the code itself is never persisted
// in clear anywhere else.
type OTPRequestedEvent struct {
    Email       string `json:"email"`
    Code        string `json:"code"`
    TTLSeconds  int    `json:"ttl_seconds"`
    RequestedAt string `json:"requested_at"`
}
