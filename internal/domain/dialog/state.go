package dialog

import (
	"time"

	"github.com/google/uuid"
)

// Persona is one dialog mode of the bot.
type Persona string

const (
	PersonaIntro             Persona = "wewall_intro"
	PersonaMarketExpert      Persona = "market_expert"
	PersonaListingSearch     Persona = "listing_search"
	PersonaReturnsCalculator Persona = "returns_calculator"
	PersonaContactCollector  Persona = "contact_collector"
	PersonaManagerHandoff    Persona = "manager_handoff"
)

var Personas = []Persona{
	PersonaIntro,
	PersonaMarketExpert,
	PersonaListingSearch,
	PersonaReturnsCalculator,
	PersonaContactCollector,
	PersonaManagerHandoff,
}

func (p Persona) Valid() bool {
	for _, known := range Personas {
		if p == known {
			return true
		}
	}
	return false
}

// Counter names one of the monotonic interaction counters of a UserState.
type Counter string

const (
	CounterMessages   Counter = "messages_seen"
	CounterSearch     Counter = "search_invocations"
	CounterCalculator Counter = "calculator_invocations"
)

// Column is the user_state column backing the counter; "" for unknown counters.
func (c Counter) Column() string {
	switch c {
	case CounterMessages, CounterSearch, CounterCalculator:
		return string(c)
	default:
		return ""
	}
}

// UserState is the durable per-chat dialog state.
type UserState struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID int64     `gorm:"column:chat_id;not null;uniqueIndex" json:"chat_id"`

	Persona Persona `gorm:"type:text;not null;default:'wewall_intro'" json:"persona"`

	MessagesSeen          uint32 `gorm:"column:messages_seen;not null;default:0" json:"messages_seen"`
	SearchInvocations     uint32 `gorm:"column:search_invocations;not null;default:0" json:"search_invocations"`
	CalculatorInvocations uint32 `gorm:"column:calculator_invocations;not null;default:0" json:"calculator_invocations"`

	// TransferredToHuman only ever flips false -> true within one state row.
	TransferredToHuman bool `gorm:"column:transferred_to_human;not null;default:false" json:"transferred_to_human"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (UserState) TableName() string { return "user_state" }

func NewUserState(chatID int64) *UserState {
	now := time.Now().UTC()
	return &UserState{
		ID:        uuid.New(),
		ChatID:    chatID,
		Persona:   PersonaIntro,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Value returns the current value of c.
func (s *UserState) Value(c Counter) uint32 {
	switch c {
	case CounterMessages:
		return s.MessagesSeen
	case CounterSearch:
		return s.SearchInvocations
	case CounterCalculator:
		return s.CalculatorInvocations
	default:
		return 0
	}
}

// CounterSnapshot is the post-increment view returned atomically by the store.
type CounterSnapshot struct {
	Counter     Counter
	Value       uint32
	Transferred bool
}
