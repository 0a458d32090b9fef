package assessment

import (
	"errors"

	"github.com/xkilldash9x/ari/internal/bank"
)

var (
	// ErrSessionNotFound means the session id is unknown or has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuestionBankUnavailable is the bank package sentinel, re-exported so
	// callers of the engine need only one import.
	ErrQuestionBankUnavailable = bank.ErrUnavailable
	// ErrOptionsNotFound means a scenario lacks an option the selector needs.
	ErrOptionsNotFound = errors.New("options not found for scenario")
	// ErrScenarioDataNotFound means a queued or delivered question id does not
	// resolve in the question bank.
	ErrScenarioDataNotFound = errors.New("scenario data not found")
	ErrInvalidAction        = errors.New("invalid action")
	ErrNoHistoryAvailable   = errors.New("no history available")
	// ErrMalformedAnswerPayload covers undecodable payloads, empty answer
	// sets, duplicate rankings and keys rejected by the unknown key policy.
	ErrMalformedAnswerPayload = errors.New("malformed answer payload")
	// ErrActionNotAllowed means the action is valid but not in the session's phase.
	ErrActionNotAllowed = errors.New("action not allowed in current phase")
)

// IsIntegrityError reports whether err points at broken question bank data.
func IsIntegrityError(err error) bool {
	return errors.Is(err, ErrOptionsNotFound) || errors.Is(err, ErrScenarioDataNotFound)
}
