package gateway

import (
	"errors"
)

// Kind groups errors by how a caller should react to them.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindValidation is a malformed request; resubmitting it unchanged fails again.
	KindValidation
	// KindStateConflict guards idempotency: the operation already happened or cannot yet.
	KindStateConflict
	// KindAuthorization means the caller lacks the role for the operation.
	KindAuthorization
	// KindConsensus is a proof or signature problem.
	KindConsensus
	// KindExecution means a certified batch could not be applied.
	KindExecution
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state-conflict"
	case KindAuthorization:
		return "authorization"
	case KindConsensus:
		return "consensus"
	case KindExecution:
		return "execution"
	}
	return "unknown"
}

// Error is a gateway error kind. Values are compared by identity, so wrap
// them with %w and match with errors.Is.
type Error struct {
	Name string
	Kind Kind
}

func (e *Error) Error() string { return e.Name }

func newError(name string, kind Kind) *Error {
	return &Error{Name: name, Kind: kind}
}

var (
	ErrBatchWithNoMessages     = newError("BatchWithNoMessages", KindValidation)
	ErrInvalidBatchEpoch       = newError("InvalidBatchEpoch", KindValidation)
	ErrInvalidBatchSource      = newError("InvalidBatchSource", KindValidation)
	ErrZeroMembershipWeight    = newError("ZeroMembershipWeight", KindValidation)
	ErrInvalidMembershipWeight = newError("InvalidMembershipWeight", KindValidation)
	ErrInvalidRetentionHeight  = newError("InvalidRetentionHeight", KindValidation)
	ErrMaxMsgsPerBatchExceeded = newError("MaxMsgsPerBatchExceeded", KindValidation)
	ErrInvalidCrossMsgValue    = newError("InvalidCrossMsgValue", KindValidation)

	ErrBatchAlreadyExists     = newError("BatchAlreadyExists", KindStateConflict)
	ErrBatchNotCreated        = newError("BatchNotCreated", KindStateConflict)
	ErrQuorumAlreadyProcessed = newError("QuorumAlreadyProcessed", KindStateConflict)
	ErrSignatureReplay        = newError("SignatureReplay", KindStateConflict)
	ErrBatchNotCertified      = newError("BatchNotCertified", KindStateConflict)
	ErrSubnetAlreadyExists    = newError("SubnetAlreadyExists", KindStateConflict)
	ErrNoValidatorSet         = newError("NoValidatorSet", KindStateConflict)

	ErrNotAuthorized       = newError("NotAuthorized", KindAuthorization)
	ErrNotSystemActor      = newError("NotSystemActor", KindAuthorization)
	ErrNotRegisteredSubnet = newError("NotRegisteredSubnet", KindAuthorization)
	ErrSubnetNotFound      = newError("SubnetNotFound", KindAuthorization)

	ErrInvalidSignature             = newError("InvalidSignature", KindConsensus)
	ErrFailedAddSignatory           = newError("FailedAddSignatory", KindConsensus)
	ErrFailedAddIncompleteQuorum    = newError("FailedAddIncompleteQuorum", KindConsensus)
	ErrFailedRemoveIncompleteQuorum = newError("FailedRemoveIncompleteQuorum", KindConsensus)

	ErrInvalidCrossMsgNonce      = newError("InvalidCrossMsgNonce", KindExecution)
	ErrInvalidCrossMsgDstSubnet  = newError("InvalidCrossMsgDstSubnet", KindExecution)
	ErrInvalidCrossMsgFromSubnet = newError("InvalidCrossMsgFromSubnet", KindExecution)
	ErrNotEnoughSubnetCircSupply = newError("NotEnoughSubnetCircSupply", KindExecution)
	ErrMsgRejected               = newError("MsgRejected", KindExecution)
)

// KindOf returns the category of the gateway error wrapped in err.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NameOf returns the name of the gateway error wrapped in err, or "".
func NameOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Name
	}
	return ""
}
