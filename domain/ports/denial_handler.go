package ports

// DenialHandler observes refusals. It cannot change the outcome: by the time
// OnDenial runs the request has already been rejected.
type DenialHandler interface {
	// OnDenial receives the decision kind ("load" for the gate), the refused
	// request value and a short reason.
	OnDenial(kind string, request any, reason string)
}
