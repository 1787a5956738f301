package topics

const (
	// Kafka topic carrying every streak engine event, keyed by user id.
	StreakEvents = "streak_events"

	// Redis pub/sub channel for the presentation layer.
	StreakBroadcast = "streak_events_broadcast"
)
