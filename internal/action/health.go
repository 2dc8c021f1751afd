package action

// Health is the aggregated availability of a backend, derived on demand.
type Health string

const (
	HealthHealthy      Health = "healthy"
	HealthDegraded     Health = "degraded"
	HealthReconnecting Health = "reconnecting"
	HealthDead         Health = "dead"
	HealthUnknown      Health = "unknown"
)

// rank orders health values from best to worst for comparisons.
var rank = map[Health]int{
	HealthHealthy:      0,
	HealthDegraded:     1,
	HealthReconnecting: 2,
	HealthUnknown:      3,
	HealthDead:         4,
}

// Better reports whether h is strictly better than other.
func (h Health) Better(other Health) bool {
	return rank[h] < rank[other]
}
