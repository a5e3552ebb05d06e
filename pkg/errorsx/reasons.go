package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonClassifyTransport   ReasonCode = "classify_transport"
	ReasonClassifyStatus      ReasonCode = "classify_status"
	ReasonClassifyDecode      ReasonCode = "classify_decode"
	ReasonClassifyExtract     ReasonCode = "classify_extract"
	ReasonClassifyParse       ReasonCode = "classify_parse"
	ReasonClassifyShape       ReasonCode = "classify_shape"
	ReasonClassifyRateLimit   ReasonCode = "classify_rate_limit"
	ReasonClassifyCircuitOpen ReasonCode = "classify_circuit_open"
	ReasonClassifyTimeout     ReasonCode = "classify_timeout"

	ReasonCommandBadRequest   ReasonCode = "command_bad_request"
	ReasonCommandUnauthorized ReasonCode = "command_unauthorized"
	ReasonCommandDispatch     ReasonCode = "command_dispatch"

	ReasonCaptureFailed   ReasonCode = "capture_failed"
	ReasonCaptureTimeout  ReasonCode = "capture_timeout"
	ReasonPlaybackFailed  ReasonCode = "playback_failed"
	ReasonSessionClosed   ReasonCode = "session_closed"
	ReasonRemoteSend      ReasonCode = "remote_send"
	ReasonRemoteProtocol  ReasonCode = "remote_protocol"
	ReasonRemoteClientErr ReasonCode = "remote_client_error"
)
