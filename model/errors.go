package model

import "errors"

var (
	ErrUnknownField         = errors.New("unknown field")
	ErrInvalidValue         = errors.New("invalid value")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrStepInvalid          = errors.New("current step is not valid")
	ErrTopologyLocked       = errors.New("travel type can only change on the travel type page")
	ErrSubmitRequired       = errors.New("final step can only be left by submitting")
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("form already submitted")
	ErrSubmissionRejected   = errors.New("submission rejected by sink")
	ErrSinkUnavailable      = errors.New("sink unavailable")
	ErrMalformedAck         = errors.New("malformed sink response")
	ErrSessionNotFound      = errors.New("session does not exist")
)

const (
	MsgSubmitFailed = "Something went wrong, please try again."
	MsgNetworkError = "Network error, please try again."
)
