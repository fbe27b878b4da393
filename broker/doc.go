// Package broker streams persisted conversation events to downstream
// consumers. LogBroker writes one structured log line per event; SQSBroker
// sends one message per event to an AWS SQS queue.
package broker
