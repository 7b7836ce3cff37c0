// internal/uno/card.go
package uno

import (
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

// Color is the printed color of a card. Wild cards carry ColorWild until a
// color is chosen for them at play time.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorWild   Color = "wild"
)

// Colors lists the four playable colors in enumeration order. Tie-breaking
// (e.g. the bot's wild color choice) follows this order.
var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow}

// IsPlayable reports whether c is one of the four table colors.
func (c Color) IsPlayable() bool {
	for _, pc := range Colors {
		if c == pc {
			return true
		}
	}
	return false
}

// Value is the face of a card: "0".."9" or one of the action values below.
type Value string

const (
	ValueSkip         Value = "skip"
	ValueReverse      Value = "reverse"
	ValueDrawTwo      Value = "draw2"
	ValueWild         Value = "wild"
	ValueWildDrawFour Value = "wild_draw4"
)

// Card is an immutable card value. The ID distinguishes the physical copies
// of an otherwise identical card within one deck.
type Card struct {
	ID    string `json:"id"`
	Color Color  `json:"color"`
	Value Value  `json:"value"`
}

// IsWild reports whether the card is a wild or wild-draw-four.
func (c Card) IsWild() bool {
	return c.Value == ValueWild || c.Value == ValueWildDrawFour
}

// IsAction reports whether the card is anything other than a plain number.
func (c Card) IsAction() bool {
	switch c.Value {
	case ValueSkip, ValueReverse, ValueDrawTwo, ValueWild, ValueWildDrawFour:
		return true
	}
	return false
}

// DrawAmount returns the forced-draw count the card imposes, or 0.
func (c Card) DrawAmount() int {
	switch c.Value {
	case ValueDrawTwo:
		return 2
	case ValueWildDrawFour:
		return 4
	}
	return 0
}

// DeckSize is the number of cards in a standard deck: per color one 0, two
// each of 1-9, and two each of skip/reverse/draw2 (25 x 4), plus four wilds
// and four wild-draw-fours.
const DeckSize = 108

// NewDeck builds and shuffles a standard 108-card deck using r.
func NewDeck(r *rand.Rand) []Card {
	deck := make([]Card, 0, DeckSize)
	add := func(color Color, value Value) {
		deck = append(deck, Card{ID: uuid.NewString(), Color: color, Value: value})
	}
	for _, color := range Colors {
		add(color, Value("0"))
		for n := 1; n <= 9; n++ {
			v := Value(strconv.Itoa(n))
			add(color, v)
			add(color, v)
		}
		for _, v := range []Value{ValueSkip, ValueReverse, ValueDrawTwo} {
			add(color, v)
			add(color, v)
		}
	}
	for i := 0; i < 4; i++ {
		add(ColorWild, ValueWild)
		add(ColorWild, ValueWildDrawFour)
	}
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
