package table

import (
	"maps"
	"slices"
	"time"
)

type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
)

// Betting reports whether players act in this phase.
func (p Phase) Betting() bool {
	switch p {
	case PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver:
		return true
	}
	return false
}

type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionBet   Action = "bet"
	ActionRaise Action = "raise"
)

// ParseAction normalises client input.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionFold, ActionCheck, ActionCall, ActionBet, ActionRaise:
		return a, nil
	}
	return "", ErrUnknownAction
}

// Player 座位信息
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Chips     int64  `json:"chips"`
	Position  int    `json:"position"`
	IsActive  bool   `json:"isActive"`
	HasFolded bool   `json:"hasFolded"`
	// Cards holds hole cards only once they are revealed at showdown.
	Cards []Card `json:"cards,omitempty"`
}

type LastAction struct {
	PlayerID string    `json:"playerId"`
	Action   Action    `json:"action"`
	Amount   int64     `json:"amount"`
	At       time.Time `json:"at"`
}

type Winner struct {
	PlayerID    string `json:"playerId"`
	Amount      int64  `json:"amount"`
	HandRank    string `json:"handRank,omitempty"`
	Description string `json:"description,omitempty"`
}

type ChatMessage struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"playerId"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// Table is the authoritative state of one poker table. Deck and HoleCards
// are server-private and removed by Public before anything leaves the server.
type Table struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MaxSeats int    `json:"maxSeats"`

	Players        []Player `json:"players"`
	CommunityCards []Card   `json:"communityCards"`

	Pot                int64 `json:"pot"`
	CurrentBet         int64 `json:"currentBet"`
	DealerPosition     int   `json:"dealerPosition"`
	CurrentPlayerIndex int   `json:"currentPlayerIndex"`
	SmallBlind         int64 `json:"smallBlind"`
	BigBlind           int64 `json:"bigBlind"`
	Phase              Phase `json:"phase"`

	RoundBets     map[string]int64 `json:"roundBets"`
	Contributions map[string]int64 `json:"contributions"`
	Acted         map[string]bool  `json:"acted"`
	MinRaise      int64            `json:"minRaise"`
	LastBettor    string           `json:"lastBettor,omitempty"`
	// FullBet 最近一次完整下注/加注后的注额，短码全下不会改变它
	FullBet int64 `json:"fullBet"`

	LastAction          *LastAction   `json:"lastAction,omitempty"`
	LastActivePlayer    string        `json:"lastActivePlayer,omitempty"`
	LastActionTimestamp time.Time     `json:"lastActionTimestamp"`
	TurnTimeLimit       time.Duration `json:"turnTimeLimit"`

	IsHandInProgress bool     `json:"isHandInProgress"`
	HandID           string   `json:"handId,omitempty"`
	Winners          []Winner `json:"winners"`
	WinningAmount    int64    `json:"winningAmount"`

	Chat []ChatMessage `json:"chat"`

	Deck      []Card            `json:"deck,omitempty"`
	HoleCards map[string][]Card `json:"holeCards,omitempty"`
}

// New returns an empty table in the waiting phase with every container initialised.
func New(id string, smallBlind, bigBlind int64) *Table {
	t := &Table{
		ID:         id,
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
		MinRaise:   bigBlind,
		Phase:      PhaseWaiting,
	}
	t.Normalize()
	return t
}

// Normalize replaces nil containers with empty ones. Stores call it after decoding.
func (t *Table) Normalize() {
	if t.Players == nil {
		t.Players = []Player{}
	}
	if t.CommunityCards == nil {
		t.CommunityCards = []Card{}
	}
	if t.RoundBets == nil {
		t.RoundBets = map[string]int64{}
	}
	if t.Contributions == nil {
		t.Contributions = map[string]int64{}
	}
	if t.Acted == nil {
		t.Acted = map[string]bool{}
	}
	if t.Winners == nil {
		t.Winners = []Winner{}
	}
	if t.Chat == nil {
		t.Chat = []ChatMessage{}
	}
	if t.Deck == nil {
		t.Deck = []Card{}
	}
	if t.HoleCards == nil {
		t.HoleCards = map[string][]Card{}
	}
	if t.Phase == "" {
		t.Phase = PhaseWaiting
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := *t
	c.Players = make([]Player, len(t.Players))
	for i, p := range t.Players {
		p.Cards = slices.Clone(p.Cards)
		c.Players[i] = p
	}
	c.CommunityCards = slices.Clone(t.CommunityCards)
	c.RoundBets = maps.Clone(t.RoundBets)
	c.Contributions = maps.Clone(t.Contributions)
	c.Acted = maps.Clone(t.Acted)
	c.Winners = slices.Clone(t.Winners)
	c.Chat = slices.Clone(t.Chat)
	c.Deck = slices.Clone(t.Deck)
	c.HoleCards = make(map[string][]Card, len(t.HoleCards))
	for id, cards := range t.HoleCards {
		c.HoleCards[id] = slices.Clone(cards)
	}
	if t.LastAction != nil {
		la := *t.LastAction
		c.LastAction = &la
	}
	c.Normalize()
	return &c
}

// Public strips the deck and unrevealed hole cards.
func (t *Table) Public() *Table {
	c := t.Clone()
	c.Deck = []Card{}
	c.HoleCards = map[string][]Card{}
	return c
}

// PlayerIndex returns the seat of the player or -1.
func (t *Table) PlayerIndex(id string) int {
	for i := range t.Players {
		if t.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// Player returns a pointer into Players so callers can mutate a working copy.
func (t *Table) Player(id string) (*Player, error) {
	i := t.PlayerIndex(id)
	if i < 0 {
		return nil, ErrPlayerNotFound
	}
	return &t.Players[i], nil
}

// CurrentPlayer returns the seat whose turn it is, if any.
func (t *Table) CurrentPlayer() (*Player, bool) {
	if t.CurrentPlayerIndex < 0 || t.CurrentPlayerIndex >= len(t.Players) {
		return nil, false
	}
	return &t.Players[t.CurrentPlayerIndex], true
}

// TotalChips is pot plus every stack; constant within a hand.
func (t *Table) TotalChips() int64 {
	total := t.Pot
	for _, p := range t.Players {
		total += p.Chips
	}
	return total
}

// Contenders are players still eligible to win the pot of the current hand.
func (t *Table) Contenders() []int {
	out := make([]int, 0, len(t.Players))
	for i, p := range t.Players {
		if p.IsActive && !p.HasFolded {
			out = append(out, i)
		}
	}
	return out
}
