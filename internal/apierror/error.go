// Copyright 2025 The OpenChoreo Authors
// SPDX-License-Identifier: Apache-2.0

package apierror

import "fmt"

// Error is a taxonomy-classified domain error. WorkflowID is populated
// whenever the failure is attributable to one workflow, so client
// correlation always has it to hand (§7's propagation rule).
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	WorkflowID string
	Candidates []CandidateRejection
	err        error
}

// CandidateRejection records why one candidate node was rejected, carried
// by Resource-kind errors as the "candidate-rejection table" §7 calls for.
type CandidateRejection struct {
	Hostname string
	Reason   string
}

func (e *Error) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s: %s [workflow_id=%s]", e.Code, e.Message, e.WorkflowID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: kind.defaultCode(), Message: fmt.Sprintf(format, args...), err: err}
}

// WithWorkflow returns a copy of e tagged with workflowID.
func (e *Error) WithWorkflow(workflowID string) *Error {
	cp := *e
	cp.WorkflowID = workflowID
	return &cp
}

// WithCandidates returns a copy of e carrying rejected, for Resource-kind
// errors (§7: "400 with candidate-rejection table").
func (e *Error) WithCandidates(rejected []CandidateRejection) *Error {
	cp := *e
	cp.Candidates = rejected
	return &cp
}

// WithCode returns a copy of e with its default code overridden.
func (e *Error) WithCode(code string) *Error {
	cp := *e
	cp.Code = code
	return &cp
}

func UserInput(format string, args ...any) *Error  { return newError(KindUserInput, nil, format, args...) }
func Usage(format string, args ...any) *Error      { return newError(KindUsage, nil, format, args...) }
func Resource(format string, args ...any) *Error   { return newError(KindResource, nil, format, args...) }
func Credential(format string, args ...any) *Error { return newError(KindCredential, nil, format, args...) }
func Quota(format string, args ...any) *Error      { return newError(KindQuota, nil, format, args...) }
func NotFound(format string, args ...any) *Error   { return newError(KindNotFound, nil, format, args...) }
func Conflict(format string, args ...any) *Error   { return newError(KindConflict, nil, format, args...) }
func Gone(format string, args ...any) *Error       { return newError(KindGone, nil, format, args...) }

// Database wraps err as a retryable Database-kind error (§7).
func Database(err error, format string, args ...any) *Error {
	return newError(KindDatabase, err, format, args...)
}

// Backend wraps err as a Backend-kind error: the cluster/scheduler it
// talks to is unreachable or rejected a call.
func Backend(err error, format string, args ...any) *Error {
	return newError(KindBackend, err, format, args...)
}

// Server wraps err as an unexpected-internal-failure Server-kind error.
func Server(err error, format string, args ...any) *Error {
	return newError(KindServer, err, format, args...)
}
