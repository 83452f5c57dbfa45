package realtime

import "time"

const (
	// Inbound frames are tiny control messages.
	maxFrameBytes = 4 << 10

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection inbound limit (events per window).
	rateLimitEvents = 30
	rateLimitWindow = 10 * time.Second

	defaultSendQueueSize = 64
	minSendQueueSize     = 8

	defaultWriteTimeout = 5 * time.Second
	closeGrace          = time.Second

	maxPingFailures = 3
)
