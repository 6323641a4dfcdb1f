package teleop

import "errors"

// Common errors
var (
	ErrInvalidComponent = errors.New("invalid command component")
	ErrProtocol         = errors.New("malformed command payload")
	ErrConfiguration    = errors.New("invalid configuration")
)
