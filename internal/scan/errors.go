package scan

import "errors"

var (
	ErrInvalidRange  = errors.New("invalid nonce range")
	ErrRangeTooLarge = errors.New("nonce range too large")
	ErrLimitTooLarge = errors.New("hit limit too large")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrUnknownOp     = errors.New("unknown target operation")
	ErrInvalidPicks  = errors.New("invalid picks")
)
