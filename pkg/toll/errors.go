package toll

import "errors"

// Domain-level error values returned by the decision engine.
var (
	ErrUnknownGate         = errors.New("unknown gate")
	ErrGateNotOperational  = errors.New("gate not operational")
	ErrUnknownVehicle      = errors.New("unknown vehicle")
	ErrMissingTag          = errors.New("missing rfid tag")
	ErrMissingReason       = errors.New("missing reason")
	ErrMissingStaff        = errors.New("missing staff id")
	ErrInvalidWeight       = errors.New("invalid weight")
	ErrInvalidState        = errors.New("invalid hardware state")
	ErrInvalidEngineConfig = errors.New("invalid engine config")
	ErrSystem              = errors.New("system error")
)
