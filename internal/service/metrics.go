package service

// Metrics counts workflow outcomes. *metrics.Collector implements it.
type Metrics interface {
	BookingOutcome(outcome string)
	CheckInResult(result string)
	TripEvent(event string)
}

type noopMetrics struct{}

func (noopMetrics) BookingOutcome(string) {}
func (noopMetrics) CheckInResult(string)  {}
func (noopMetrics) TripEvent(string)      {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
