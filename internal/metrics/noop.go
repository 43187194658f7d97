package metrics

// NoopMetrics discards everything. Used when METRICS_ENABLED=false and in tests.
type NoopMetrics struct{}

var _ Recorder = (*NoopMetrics)(nil)

func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordAuthAttempt(method, result string) {}
func (n *NoopMetrics) RecordTokenIssued(method string)         {}
func (n *NoopMetrics) RecordTokenValidation(result string)     {}
func (n *NoopMetrics) RecordUserMutation(action string)        {}
