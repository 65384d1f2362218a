package domain

import "errors"

var (
	ErrHubStopped         = errors.New("relay hub is stopped")
	ErrCapacityReached    = errors.New("connection capacity reached")
	ErrNoBroadcastAddress = errors.New("no broadcast address found")
	ErrSendBufferFull     = errors.New("send buffer full")
	ErrWriterStopped      = errors.New("writer stopped")
)
