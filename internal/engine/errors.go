package engine

// ErrorCode discriminates the expected, user-facing coup failures so
// hosts can branch on the kind instead of matching message text.
type ErrorCode string

const (
	CodeInsufficientReputation ErrorCode = "insufficient_reputation"
	CodeInsufficientGold       ErrorCode = "insufficient_gold"
	CodeNotCheckedIn           ErrorCode = "not_checked_in"
	CodeAlreadyRuler           ErrorCode = "already_ruler"
	CodeKingdomUnclaimed       ErrorCode = "kingdom_unclaimed"
	CodeCooldownActive         ErrorCode = "cooldown_active"
	CodeContestAlreadyActive   ErrorCode = "contest_already_active"
	CodeVotingClosed           ErrorCode = "voting_closed"
	CodeAlreadyJoined          ErrorCode = "already_joined"
	CodeInvalidSide            ErrorCode = "invalid_side"
	CodeNotYetResolvable       ErrorCode = "not_yet_resolvable"
	CodeAlreadyResolved        ErrorCode = "already_resolved"
	CodeContestNotFound        ErrorCode = "contest_not_found"
)

// CoupError is a recoverable domain failure. These are outcomes, not
// faults: the engine returns them for every guard rejection and never
// aborts on them. Infrastructure errors pass through untouched.
type CoupError struct {
	Code    ErrorCode
	Message string
}

func (e *CoupError) Error() string { return e.Message }

// Is matches by code so errors.Is(err, ErrCooldownActive) works on any
// CoupError carrying the same kind.
func (e *CoupError) Is(target error) bool {
	t, ok := target.(*CoupError)
	return ok && t.Code == e.Code
}

var (
	ErrInsufficientReputation = &CoupError{CodeInsufficientReputation, "reputation in this kingdom is too low to lead a coup"}
	ErrInsufficientGold       = &CoupError{CodeInsufficientGold, "not enough gold to pay the initiation cost"}
	ErrNotCheckedIn           = &CoupError{CodeNotCheckedIn, "actor is not checked into this kingdom"}
	ErrAlreadyRuler           = &CoupError{CodeAlreadyRuler, "the ruler cannot coup their own kingdom"}
	ErrKingdomUnclaimed       = &CoupError{CodeKingdomUnclaimed, "an unclaimed kingdom cannot be contested"}
	ErrCooldownActive         = &CoupError{CodeCooldownActive, "coup cooldown is still active"}
	ErrContestAlreadyActive   = &CoupError{CodeContestAlreadyActive, "a coup is already underway in this kingdom"}
	ErrVotingClosed           = &CoupError{CodeVotingClosed, "the voting window for this coup is closed"}
	ErrAlreadyJoined          = &CoupError{CodeAlreadyJoined, "actor already joined a side of this coup"}
	ErrInvalidSide            = &CoupError{CodeInvalidSide, "side must be attackers or defenders"}
	ErrNotYetResolvable       = &CoupError{CodeNotYetResolvable, "the voting window has not elapsed yet"}
	ErrAlreadyResolved        = &CoupError{CodeAlreadyResolved, "this coup is already resolved"}
	ErrContestNotFound        = &CoupError{CodeContestNotFound, "coup not found"}
)
