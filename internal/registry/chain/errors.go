package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"landledger/pkg/domain"
)

// Class is the normalized failure taxonomy for chain operations.
type Class string

const (
	// ClassTransient covers timeouts, nonce races and underpriced gas. Worth
	// retrying: the condition clears on its own.
	ClassTransient Class = "transient"

	// ClassRejected covers explicit contract reverts and anything else the
	// chain will deterministically refuse again. Never retried; the reason
	// string passes through verbatim.
	ClassRejected Class = "rejected"

	// ClassEncoding covers invalid argument encoding. A caller bug, never
	// retried.
	ClassEncoding Class = "encoding"

	// ClassPending means the transaction was accepted but confirmation was
	// not observed before the wait deadline. Not retryable: resubmitting
	// could double-apply an irreversible write. The error carries the tx
	// hash so the caller can resume by reference.
	ClassPending Class = "pending"
)

// Error wraps chain operation failures with normalized classification.
type Error struct {
	Class  Class
	Op     string
	Reason string
	TxHash domain.Hash
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain %s [%s]: %s: %v", e.Op, e.Class, e.Reason, e.Err)
	}
	return fmt.Sprintf("chain %s [%s]: %s", e.Op, e.Class, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is worth retrying.
func (e *Error) Retryable() bool {
	return e.Class == ClassTransient
}

func newError(class Class, op, reason string, err error) *Error {
	return &Error{Class: class, Op: op, Reason: reason, Err: err}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// GetClass extracts the failure class, defaulting to transient for raw
// transport errors that escaped classification.
func GetClass(err error) Class {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ClassTransient
}

// transientMarkers are node error strings that clear on their own: nonce
// races between concurrent sends, gas price floors moving, mempool dedup.
var transientMarkers = []string{
	"nonce too low",
	"nonce too high",
	"replacement transaction underpriced",
	"transaction underpriced",
	"already known",
	"connection refused",
	"i/o timeout",
	"too many requests",
}

// classify maps a raw node error onto the failure taxonomy.
func classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(ClassTransient, op, "node call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(ClassTransient, op, "network failure", err)
	}

	msg := err.Error()
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "always failing transaction") {
		return newError(ClassRejected, op, revertReason(msg), err)
	}
	if strings.Contains(msg, "insufficient funds") {
		return newError(ClassRejected, op, "service account has insufficient funds", err)
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return newError(ClassTransient, op, marker, err)
		}
	}
	// Unknown node errors are treated as transient: the retry ceiling keeps
	// a persistent one from looping forever.
	return newError(ClassTransient, op, "node error", err)
}

// revertReason pulls the human-readable revert string out of a node error
// message, passing it through verbatim.
func revertReason(msg string) string {
	const marker = "execution reverted"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return msg
	}
	reason := strings.TrimLeft(msg[idx+len(marker):], ": ")
	if reason == "" {
		return "execution reverted"
	}
	return reason
}
