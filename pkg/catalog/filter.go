package catalog

// Layouts that never show a single playable card face.
var excludedLayouts = map[string]bool{
	"token":              true,
	"emblem":             true,
	"art_series":         true,
	"double_faced_token": true,
}

// BorderColors are the border colors sampled by a generation run, in order.
var BorderColors = []string{"black", "white", "borderless"}

// ColorGroup matches cards by color identity.
type ColorGroup struct {
	Name  string
	Match func(identity []string) bool
}

func mono(color string) func([]string) bool {
	return func(identity []string) bool {
		return len(identity) == 1 && identity[0] == color
	}
}

// ColorGroups returns the color groups sampled by a generation run, in order.
func ColorGroups() []ColorGroup {
	return []ColorGroup{
		{Name: "white", Match: mono("W")},
		{Name: "blue", Match: mono("U")},
		{Name: "black", Match: mono("B")},
		{Name: "red", Match: mono("R")},
		{Name: "green", Match: mono("G")},
		{Name: "colorless", Match: func(identity []string) bool { return len(identity) == 0 }},
		{Name: "multicolor", Match: func(identity []string) bool { return len(identity) > 1 }},
	}
}

// Usable reports whether c is a regular, single-faced, legal card with an image.
func Usable(c Card) bool {
	if c.IsFunny || excludedLayouts[c.Layout] {
		return false
	}
	if c.ImageURL() == "" || len(c.CardFaces) > 0 {
		return false
	}
	for _, v := range c.Legalities {
		if v == "legal" {
			return true
		}
	}
	return false
}

// FilterUsable returns the usable cards in their original order.
func FilterUsable(cards []Card) []Card {
	var out []Card
	for _, c := range cards {
		if Usable(c) {
			out = append(out, c)
		}
	}
	return out
}

// Matching returns the cards with the given border color whose color identity matches group.
func Matching(cards []Card, border string, group ColorGroup) []Card {
	var out []Card
	for _, c := range cards {
		if c.BorderColor == border && group.Match(c.ColorIdentity) {
			out = append(out, c)
		}
	}
	return out
}

// Rand is the random source used to pick cards. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Pick returns a uniformly chosen card, or false when cards is empty.
func Pick(rng Rand, cards []Card) (Card, bool) {
	if len(cards) == 0 {
		return Card{}, false
	}
	return cards[rng.IntN(len(cards))], true
}
