// Package events turns job-portal domain events into notification frames.
//
// Events arrive on a RabbitMQ topic exchange or through the HTTP publish
// endpoint. notification.created events are persisted before they are
// published so every client sees the stored id.
package events
