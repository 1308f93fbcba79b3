package recorder

// ButtonLabel returns the action-button text for a phase. It is a pure
// function of phase so any rendering layer can use it.
func ButtonLabel(p Phase) string {
	switch p {
	case PhasePreparing:
		return "Preparing ad…"
	case PhaseArming:
		return "Starting camera…"
	case PhaseEnteringFullscreen:
		return "Entering fullscreen…"
	case PhaseRecording:
		return "Recording…"
	case PhaseStopping:
		return "Stopping…"
	default:
		return "Start Recording"
	}
}

// ButtonDisabled reports whether the primary action is unavailable: the
// advertisement is not ready, a preparation step is in flight, or a session
// is already underway.
func ButtonDisabled(videoReady, preparing bool, p Phase) bool {
	return !videoReady || preparing || p != PhaseIdle
}

// OverlayState carries the inputs of the loading-overlay decision.
type OverlayState struct {
	Phase              Phase
	BufferedLevel      int
	Recording          bool
	HideWhileRecording bool
}

// OverlayVisible decides whether the loading overlay shows. The overlay is
// forced hidden once recording when the caller asks to hide it, forced
// visible during preparation and the fullscreen transition, and otherwise
// tracks buffering state.
func OverlayVisible(s OverlayState) bool {
	if s.Recording && s.HideWhileRecording {
		return false
	}
	if s.Phase == PhasePreparing || s.Phase == PhaseArming || s.Phase == PhaseEnteringFullscreen {
		return true
	}
	return !s.Recording && s.BufferedLevel < 3
}
