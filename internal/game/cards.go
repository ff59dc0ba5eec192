package game

import (
	"errors"
	"fmt"
	"math/rand"
)

type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

var suitString = map[Suit]string{
	Spades:   "Spades",
	Hearts:   "Hearts",
	Diamonds: "Diamonds",
	Clubs:    "Clubs",
}

func (s Suit) String() string {
	return suitString[s]
}

type Rank int

const (
	Ace Rank = iota
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

var rankString = map[Rank]string{
	Ace:   "Ace",
	Two:   "Two",
	Three: "Three",
	Four:  "Four",
	Five:  "Five",
	Six:   "Six",
	Seven: "Seven",
	Eight: "Eight",
	Nine:  "Nine",
	Ten:   "Ten",
	Jack:  "Jack",
	Queen: "Queen",
	King:  "King",
}

func (r Rank) String() string {
	return rankString[r]
}

type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (card Card) String() string {
	return fmt.Sprintf("%s of %s", card.Rank.String(), card.Suit.String())
}

type Deck struct {
	Cards []Card `json:"cards"`
}

// NewDeck returns the 52 distinct cards in suit-major order. The order is
// only shuffle input, but it is kept deterministic so tests can rely on it.
func NewDeck() *Deck {
	deck := make([]Card, 0, 52)
	suits := []Suit{Spades, Hearts, Diamonds, Clubs}
	ranks := []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, Card{suit, rank})
		}
	}

	return &Deck{deck}
}

func (deck Deck) Count() int {
	return len(deck.Cards)
}

// Shuffle permutes the deck in place with a Fisher-Yates shuffle: every
// permutation of the 52 cards is equally likely. A sort-by-random-key or
// partial-swap scheme would not be unbiased, so the loop stays explicit.
func (d *Deck) Shuffle() {
	for i := d.Count() - 1; i >= 1; i-- {
		j := rand.Intn(i + 1)
		d.Cards[i], d.Cards[j] = d.Cards[j], d.Cards[i]
	}
}

// GroundDistribution selects which slot receives the face-up ground cards.
type GroundDistribution int

const (
	// GroundAllToSlot0 gives the whole ground pile to slot 0.
	GroundAllToSlot0 GroundDistribution = iota
	// GroundSplitEven alternates ground cards between slots, slot 0 first.
	GroundSplitEven
)

var ErrInvalidDealSize = errors.New("INVALID_DEAL_SIZE: hands and ground exceed deck size")

// DealResult partitions a shuffled deck into two hands, two ground piles
// and the face-down remainder. Every input card lands in exactly one pile.
type DealResult struct {
	Hands     [2][]Card
	Grounds   [2][]Card
	Remainder []Card
}

// Deal draws groundSize cards from the front of the deck into the ground
// piles, then deals handSize cards to each slot alternating one card at a
// time starting with slot 0. The deck itself is not mutated.
func (d *Deck) Deal(handSize, groundSize int, dist GroundDistribution) (DealResult, error) {
	if handSize < 0 || groundSize < 0 || handSize*2+groundSize > d.Count() {
		return DealResult{}, ErrInvalidDealSize
	}

	var result DealResult
	pos := 0

	for i := 0; i < groundSize; i++ {
		card := d.Cards[pos]
		pos++
		switch dist {
		case GroundSplitEven:
			result.Grounds[i%2] = append(result.Grounds[i%2], card)
		default:
			result.Grounds[0] = append(result.Grounds[0], card)
		}
	}

	for i := 0; i < handSize; i++ {
		result.Hands[0] = append(result.Hands[0], d.Cards[pos])
		result.Hands[1] = append(result.Hands[1], d.Cards[pos+1])
		pos += 2
	}

	result.Remainder = append(result.Remainder, d.Cards[pos:]...)

	if err := result.checkPartition(d); err != nil {
		return DealResult{}, err
	}

	return result, nil
}

// checkPartition verifies the deal covered every card exactly once.
func (r DealResult) checkPartition(d *Deck) error {
	seen := make(map[Card]bool, d.Count())
	total := 0

	for _, pile := range [][]Card{r.Hands[0], r.Hands[1], r.Grounds[0], r.Grounds[1], r.Remainder} {
		for _, card := range pile {
			if seen[card] {
				return fmt.Errorf("deal produced duplicate card %s", card)
			}
			seen[card] = true
			total++
		}
	}

	if total != d.Count() {
		return fmt.Errorf("deal lost cards: dealt %d of %d", total, d.Count())
	}

	return nil
}
