package recorder

// Phase is the finite state of the capture session orchestrator.
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhasePreparing          Phase = "preparing"
	PhaseArming             Phase = "arming"
	PhaseEnteringFullscreen Phase = "entering-fullscreen"
	PhaseRecording          Phase = "recording"
	PhaseStopping           Phase = "stopping"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIdle, PhasePreparing, PhaseArming, PhaseEnteringFullscreen, PhaseRecording, PhaseStopping:
		return true
	}
	return false
}
