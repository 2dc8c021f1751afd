package action

import "errors"

// Error taxonomy shared by every backend. Backends wrap one of these with
// context via fmt.Errorf("...: %w", ErrX).
var (
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrTimeout            = errors.New("timeout")
	ErrProtocol           = errors.New("protocol error")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrStaleReference     = errors.New("stale reference")
)

// Classify returns the taxonomy name of err, or "error" when err does not wrap
// one of the known sentinels.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrProtocol):
		return "protocol_error"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrStaleReference):
		return "stale_reference"
	default:
		return "error"
	}
}
