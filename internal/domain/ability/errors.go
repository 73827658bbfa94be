package ability

import "errors"

var (
	// ErrParamNull reports a missing or invalid parameter, including an
	// unresolvable bundle or an empty execution path
	ErrParamNull = errors.New("invalid or missing parameter")
	// ErrParamCheck reports a start request rejected by the response check
	ErrParamCheck = errors.New("response check rejected request")
	// ErrCreateTask reports that a worker task or queue could not be created
	ErrCreateTask = errors.New("failed to create worker task")
	// ErrLifecycle reports that a lifecycle instruction could not be delivered
	ErrLifecycle = errors.New("lifecycle dispatch failed")
	// ErrStaleToken reports a token that no longer names the foreground ability
	ErrStaleToken = errors.New("token does not match foreground ability")
	// ErrFailed is the generic failure
	ErrFailed = errors.New("ability operation failed")
)

// Result codes returned over the API
const (
	CodeOK         = "OK"
	CodeParamNull  = "PARAM_NULL_ERROR"
	CodeParamCheck = "PARAM_CHECK_ERROR"
	CodeCreateTask = "CREATE_APPTASK_ERROR"
	CodeLifecycle  = "SCHEDULER_LIFECYCLE_ERROR"
	CodeStaleToken = "STALE_TOKEN_ERROR"
	CodeFailed     = "FAILED"
)

// Code maps an error to its result code
func Code(err error) string {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrParamNull):
		return CodeParamNull
	case errors.Is(err, ErrParamCheck):
		return CodeParamCheck
	case errors.Is(err, ErrCreateTask):
		return CodeCreateTask
	case errors.Is(err, ErrLifecycle):
		return CodeLifecycle
	case errors.Is(err, ErrStaleToken):
		return CodeStaleToken
	default:
		return CodeFailed
	}
}
