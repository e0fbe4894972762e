package models

// TradeType is the closed set of position kinds the engine tracks.
type TradeType string

const (
	TradeTypeCSP         TradeType = "CSP"
	TradeTypeCoveredCall TradeType = "Covered Call"
	TradeTypeLeaps       TradeType = "LEAPS"
	TradeTypeAssignment  TradeType = "Assignment"
	TradeTypeRollover    TradeType = "Rollover"
)

// Valid reports whether t is one of the known trade types.
func (t TradeType) Valid() bool {
	switch t {
	case TradeTypeCSP, TradeTypeCoveredCall, TradeTypeLeaps, TradeTypeAssignment, TradeTypeRollover:
		return true
	}
	return false
}

// TradeAction is the direction of an options transaction.
type TradeAction string

const (
	ActionSoldToOpen    TradeAction = "Sold to Open"
	ActionBoughtToOpen  TradeAction = "Bought to Open"
	ActionBoughtToClose TradeAction = "Bought to Close"
	ActionSoldToClose   TradeAction = "Sold to Close"
)

// IsOpening reports whether the action establishes a position.
func (a TradeAction) IsOpening() bool {
	return a == ActionSoldToOpen || a == ActionBoughtToOpen
}

// IsClosing reports whether the action reduces a position.
func (a TradeAction) IsClosing() bool {
	return a == ActionBoughtToClose || a == ActionSoldToClose
}

// IsSell reports whether the action receives cash.
func (a TradeAction) IsSell() bool {
	return a == ActionSoldToOpen || a == ActionSoldToClose
}

// TradeStatus is the lifecycle state of a trade. Open is the only
// non-terminal state; the rest record how the last contracts resolved.
type TradeStatus string

const (
	StatusOpen       TradeStatus = "Open"
	StatusClosed     TradeStatus = "Closed"
	StatusAssigned   TradeStatus = "Assigned"
	StatusExpired    TradeStatus = "Expired"
	StatusCalledAway TradeStatus = "Called Away"
)

// CloseMethod is how open contracts are resolved.
type CloseMethod string

const (
	CloseBuyToClose  CloseMethod = "buy_to_close"
	CloseSellToClose CloseMethod = "sell_to_close"
	CloseExpired     CloseMethod = "expired"
	CloseAssigned    CloseMethod = "assigned"
	CloseCalledAway  CloseMethod = "called_away"
	CloseExercise    CloseMethod = "exercise"
)

// CloseMethods returns the resolution methods allowed for a trade type.
// Rollover positions are bookkeeping entries and have no close workflow.
func (t TradeType) CloseMethods() []CloseMethod {
	switch t {
	case TradeTypeCSP:
		return []CloseMethod{CloseBuyToClose, CloseExpired, CloseAssigned}
	case TradeTypeCoveredCall:
		return []CloseMethod{CloseBuyToClose, CloseExpired, CloseAssigned, CloseCalledAway}
	case TradeTypeLeaps:
		return []CloseMethod{CloseSellToClose, CloseExpired, CloseExercise}
	case TradeTypeAssignment:
		return []CloseMethod{CloseSellToClose}
	case TradeTypeRollover:
		return nil
	}
	return nil
}

// AllowsClose reports whether m is a valid resolution for trade type t.
// A covered call "assigned" is the same event as "called_away".
func (t TradeType) AllowsClose(m CloseMethod) bool {
	for _, allowed := range t.CloseMethods() {
		if allowed == m {
			return true
		}
	}
	return false
}

// Action returns the trade action recorded on the closing entry, or ""
// for resolution methods that have no market transaction.
func (m CloseMethod) Action() TradeAction {
	switch m {
	case CloseBuyToClose:
		return ActionBoughtToClose
	case CloseSellToClose:
		return ActionSoldToClose
	}
	return ""
}

// RequiresPrice reports whether the method needs a market price.
func (m CloseMethod) RequiresPrice() bool {
	return m == CloseBuyToClose || m == CloseSellToClose
}

// TerminalStatus returns the status an opening trade takes once its
// last contracts resolve via this method.
func (m CloseMethod) TerminalStatus() TradeStatus {
	switch m {
	case CloseExpired:
		return StatusExpired
	case CloseAssigned:
		return StatusAssigned
	case CloseCalledAway:
		return StatusCalledAway
	default:
		// buy_to_close, sell_to_close, exercise
		return StatusClosed
	}
}

// PositionStatus is the lifecycle state of a stock position.
type PositionStatus string

const (
	PositionOpen       PositionStatus = "Open"
	PositionCalledAway PositionStatus = "Called Away"
)
