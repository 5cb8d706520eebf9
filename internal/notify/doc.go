// Package notify delivers the change sets produced by poll cycles.
//
// A Dispatcher fans one Event out to every configured Sink concurrently. Sinks
// exist for the process log, an HTTP webhook, a NATS subject and a Kafka topic.
// The text rendering shared by the log sink and the CLI lives in format.go.
package notify
