package domain

// CallStatus is the lifecycle status of a live-call escalation.
type CallStatus string

const (
	CallIdle       CallStatus = "idle"
	CallConnecting CallStatus = "connecting"
	CallConnected  CallStatus = "connected"
	CallFailed     CallStatus = "failed"
	CallEnded      CallStatus = "ended"
)

// Active reports whether a call in this status blocks a new escalation.
func (s CallStatus) Active() bool {
	return s == CallConnecting || s == CallConnected
}
