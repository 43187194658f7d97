package metrics

// Recorder is what the auth layer reports to. Prometheus or no-op.
type Recorder interface {
	// result: success, invalid_credentials, deactivated, invalid_input, error
	RecordAuthAttempt(method, result string)
	RecordTokenIssued(method string)
	// result: valid, expired, invalid, inactive_user
	RecordTokenValidation(result string)
	RecordUserMutation(action string)
}

const (
	MethodLocal  = "local"
	MethodGoogle = "google"

	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultDeactivated        = "deactivated"
	ResultInvalidInput       = "invalid_input"
	ResultError              = "error"

	TokenValid        = "valid"
	TokenExpired      = "expired"
	TokenInvalid      = "invalid"
	TokenInactiveUser = "inactive_user"
)
