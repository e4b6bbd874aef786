package dialog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MotivationRent = 0
	MotivationBuy  = 1

	PropertyOffice = 1
	PropertyRetail = 2

	// MaxOffersPerSearch caps a search session.
	MaxOffersPerSearch = 8
	// MaxOfferImages caps one photo group.
	MaxOfferImages = 10
)

// SearchParams is the payload of a start_estate_search finish reply.
type SearchParams struct {
	Motivation      int     `json:"motivation"`
	Type            int     `json:"type"`
	Budget          float64 `json:"budget"`
	Location        int     `json:"location"`
	Square          float64 `json:"square"`
	EstateClass     int     `json:"estate_class"`
	DistanceToMetro int     `json:"distance_to_metro"`
	Design          int     `json:"design"`
	Readiness       int     `json:"readiness"`
	IRR             float64 `json:"irr"`
}

func (p SearchParams) Valid() bool {
	if p.Motivation != MotivationRent && p.Motivation != MotivationBuy {
		return false
	}
	if p.Type != PropertyOffice && p.Type != PropertyRetail {
		return false
	}
	return p.Budget >= 0 && p.Square >= 0
}

type MetroStation struct {
	Name            string `json:"name"`
	WalkingDistance int    `json:"walking_distance"`
	CarDistance     int    `json:"car_distance"`
}

const (
	DealSale = "sale"
	DealRent = "rent"

	ReadinessFinished = "finished"

	CategoryOffice = "office"
	CategoryRetail = "retail"
)

// Offer is one listing returned by the listing service. The core treats it as a record.
type Offer struct {
	ID             int64          `json:"id"`
	EstateID       int64          `json:"estate_id"`
	EstateCategory string         `json:"estate_category"`
	Deal           string         `json:"deal"`
	Name           string         `json:"name"`
	Square         float64        `json:"square"`
	Price          float64        `json:"price"`
	PricePerMeter  float64        `json:"price_per_meter"`
	Design         string         `json:"design"`
	Floor          int            `json:"floor"`
	Type           string         `json:"type"`
	Location       string         `json:"location"`
	ImageURLs      []string       `json:"image_urls"`
	OfferReadiness string         `json:"offer_readiness"`
	ReadinessDate  string         `json:"readiness_date"`
	MetroStations  []MetroStation `json:"metro_stations"`
	Link           string         `json:"link"`
}

// NeedsFinanceModel reports whether the offer is rendered with a finance model attached.
func (o Offer) NeedsFinanceModel() bool {
	return o.Deal == DealSale &&
		strings.EqualFold(o.EstateCategory, CategoryOffice) &&
		strings.EqualFold(o.OfferReadiness, ReadinessFinished)
}

// Images returns at most MaxOfferImages image urls.
func (o Offer) Images() []string {
	if len(o.ImageURLs) <= MaxOfferImages {
		return o.ImageURLs
	}
	return o.ImageURLs[:MaxOfferImages]
}

// Cursor addresses one offer of a session and the ordinal of its estate.
type Cursor struct {
	Offer  uint32 `json:"offer"`
	Estate uint32 `json:"estate"`
}

// SearchSession holds the result of one start_estate_search. Offers are stored grouped by estate.
type SearchSession struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StateID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"state_id"`

	Params datatypes.JSONType[SearchParams] `json:"params"`
	Offers datatypes.JSONSlice[Offer]       `json:"offers"`

	CurrentOfferIndex  uint32 `gorm:"column:current_offer_index;not null;default:0" json:"current_offer_index"`
	CurrentEstateIndex uint32 `gorm:"column:current_estate_index;not null;default:0" json:"current_estate_index"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SearchSession) TableName() string { return "search_session" }

func NewSearchSession(stateID uuid.UUID, params SearchParams, offers []Offer) *SearchSession {
	grouped := GroupByEstate(offers)
	if len(grouped) > MaxOffersPerSearch {
		grouped = grouped[:MaxOffersPerSearch]
	}
	return &SearchSession{
		ID:        uuid.New(),
		StateID:   stateID,
		Params:    datatypes.NewJSONType(params),
		Offers:    datatypes.JSONSlice[Offer](grouped),
		CreatedAt: time.Now().UTC(),
	}
}

func (s *SearchSession) Cursor() Cursor {
	return Cursor{Offer: s.CurrentOfferIndex, Estate: s.CurrentEstateIndex}
}

// Current returns the offer under the cursor.
func (s *SearchSession) Current() (Offer, bool) {
	if int(s.CurrentOfferIndex) >= len(s.Offers) {
		return Offer{}, false
	}
	return s.Offers[s.CurrentOfferIndex], true
}

// NextOffer is the cursor one offer further; false past the end.
func (s *SearchSession) NextOffer() (Cursor, bool) {
	next := int(s.CurrentOfferIndex) + 1
	if next >= len(s.Offers) {
		return Cursor{}, false
	}
	estate := s.CurrentEstateIndex
	if s.Offers[next].EstateID != s.Offers[s.CurrentOfferIndex].EstateID {
		estate++
	}
	return Cursor{Offer: uint32(next), Estate: estate}, true
}

// NextEstate is the cursor at the first offer of the following estate; false when none is left.
func (s *SearchSession) NextEstate() (Cursor, bool) {
	idx, ok := s.nextEstateStart()
	if !ok {
		return Cursor{}, false
	}
	return Cursor{Offer: uint32(idx), Estate: s.CurrentEstateIndex + 1}, true
}

func (s *SearchSession) nextEstateStart() (int, bool) {
	cur := int(s.CurrentOfferIndex)
	if cur >= len(s.Offers) {
		return 0, false
	}
	for i := cur + 1; i < len(s.Offers); i++ {
		if s.Offers[i].EstateID != s.Offers[cur].EstateID {
			return i, true
		}
	}
	return 0, false
}

// Position classifies the cursor for keyboard layout.
type Position string

const (
	PositionLastOffer  Position = "last_offer"
	PositionLastEstate Position = "last_estate"
	PositionMiddle     Position = "middle_offer"
)

func (s *SearchSession) Position() Position {
	if int(s.CurrentOfferIndex) >= len(s.Offers)-1 {
		return PositionLastOffer
	}
	if _, ok := s.nextEstateStart(); !ok {
		return PositionLastEstate
	}
	return PositionMiddle
}

// GroupByEstate reorders offers so that offers of one estate are contiguous, keeping the
// order in which estates and offers first appear.
func GroupByEstate(offers []Offer) []Offer {
	order := make([]int64, 0, len(offers))
	byEstate := make(map[int64][]Offer, len(offers))
	for _, o := range offers {
		if _, seen := byEstate[o.EstateID]; !seen {
			order = append(order, o.EstateID)
		}
		byEstate[o.EstateID] = append(byEstate[o.EstateID], o)
	}
	out := make([]Offer, 0, len(offers))
	for _, id := range order {
		out = append(out, byEstate[id]...)
	}
	return out
}
