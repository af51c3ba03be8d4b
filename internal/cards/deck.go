package cards

import (
	_ "embed"
	"encoding/json"
	"math/rand"
	"sync"
)

//go:embed cards.json
var cardsJSON []byte

const (
	OrientationUpright  = "upright"
	OrientationReversed = "reversed"
)

var positionLabels = []string{"past", "present", "future"}

// Card is one entry in the deck definition.
type Card struct {
	Name     string `json:"name"`
	Upright  string `json:"upright"`
	Reversed string `json:"reversed"`
}

// DrawnCard is a card as it landed on the table.
type DrawnCard struct {
	Name        string `json:"name"`
	Orientation string `json:"orientation"`
	Meaning     string `json:"meaning"`
	Position    string `json:"position"`
}

type Deck struct {
	cards []Card

	// rand.Rand is not safe for concurrent use; one deck is shared by
	// every request handler.
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDeck(seed int64) (*Deck, error) {
	var cards []Card
	if err := json.Unmarshal(cardsJSON, &cards); err != nil {
		return nil, err
	}
	return &Deck{
		cards: cards,
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

func (d *Deck) Size() int {
	return len(d.cards)
}

// Draw picks n distinct cards, flips a coin for each card's
// orientation and assigns past/present/future slots in draw order.
func (d *Deck) Draw(n int) []DrawnCard {
	if n > len(d.cards) {
		n = len(d.cards)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	indexes := d.rng.Perm(len(d.cards))[:n]
	drawn := make([]DrawnCard, 0, n)
	for i, idx := range indexes {
		card := d.cards[idx]
		orientation := OrientationUpright
		meaning := card.Upright
		if d.rng.Intn(2) == 1 {
			orientation = OrientationReversed
			meaning = card.Reversed
		}

		position := ""
		if i < len(positionLabels) {
			position = positionLabels[i]
		}

		drawn = append(drawn, DrawnCard{
			Name:        card.Name,
			Orientation: orientation,
			Meaning:     meaning,
			Position:    position,
		})
	}
	return drawn
}
