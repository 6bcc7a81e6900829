package domain

// Call-signaling frame kinds. Signals are never persisted; they exist
// for one publish/deliver cycle only.
const (
	SignalOffer        = "webrtc-offer"
	SignalAnswer       = "webrtc-answer"
	SignalICECandidate = "webrtc-ice-candidate"
	SignalHangup       = "webrtc-hangup"
)

var signalKinds = map[string]struct{}{
	SignalOffer:        {},
	SignalAnswer:       {},
	SignalICECandidate: {},
	SignalHangup:       {},
}

// IsSignalKind reports whether a frame's type field names one of the
// four signaling kinds. Anything else is classified as chat.
func IsSignalKind(kind string) bool {
	_, ok := signalKinds[kind]
	return ok
}
