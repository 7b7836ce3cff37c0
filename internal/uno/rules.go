// internal/uno/rules.go
//
// Pure rules: legality, card effects, and turn arithmetic. Nothing in this
// package owns state; the match entity applies the results.
package uno

// CanPlay reports whether card may be played on top with the given active
// color. Wild cards are always legal; otherwise the card must match the
// active color (which already reflects a chosen color when top is wild) or
// the top card's value.
func CanPlay(card, top Card, active Color) bool {
	if card.IsWild() {
		return true
	}
	if card.Color == active {
		return true
	}
	return card.Value == top.Value
}

// Effect describes what playing a card does to the turn state. Draw amounts
// never stack: the caller must only apply Draw when no draw is pending.
type Effect struct {
	SkipCount int  // extra participants passed over when advancing
	Flip      bool // reverse direction
	Draw      int  // forced-draw amount for the next participant
}

// EffectOf returns the turn effect of card in a match of n participants.
// With exactly two participants a reverse behaves as a skip: the opponent's
// turn is passed over and control returns to the player of the card.
func EffectOf(card Card, n int) Effect {
	switch card.Value {
	case ValueSkip:
		return Effect{SkipCount: 1}
	case ValueReverse:
		if n == 2 {
			return Effect{Flip: true, SkipCount: 1}
		}
		return Effect{Flip: true}
	case ValueDrawTwo:
		return Effect{Draw: 2}
	case ValueWildDrawFour:
		return Effect{Draw: 4}
	}
	return Effect{}
}

// NextIndex walks (1+skipCount) steps from current in the given direction,
// modulo n, wrapping correctly for both directions.
func NextIndex(current, direction, skipCount, n int) int {
	if n <= 0 {
		return 0
	}
	steps := 1 + skipCount
	idx := (current + direction*steps) % n
	return (idx + n) % n
}

// HasWon reports whether a hand has been emptied.
func HasWon(hand []Card) bool {
	return len(hand) == 0
}
