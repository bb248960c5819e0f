package trip

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageUser MessageType = "user"
	MessageBot  MessageType = "bot"
)

// Message is one entry in a trip's conversation. Appended once, never edited
// in place; "editing" a user message truncates the trip instead (see Repository).
type Message struct {
	ID   int64       `json:"id"`
	Type MessageType `json:"type"`
	Text string      `json:"text"`

	// Bot-only fields, present when the backend returned them.
	Debug         map[string]any `json:"debug,omitempty"`
	TravelSlots   *TravelSlots   `json:"travelSlots,omitempty"`
	SearchResults []SearchResult `json:"searchResults,omitempty"`
	PlanChoices   []PlanChoice   `json:"planChoices,omitempty"`
	AgentState    *AgentState    `json:"agentState,omitempty"`
	Suggestions   []string       `json:"suggestions,omitempty"`
	CurrentPlan   *Plan          `json:"currentPlan,omitempty"`
	TripTitle     string         `json:"tripTitle,omitempty"`
}

// Trip is one independent conversation thread. It always holds at least one
// message (the synthetic welcome).
type Trip struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages"`
}

// TravelSlots are the structured trip parameters the backend extracts from the
// conversation.
type TravelSlots struct {
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Adults      int    `json:"adults,omitempty"`
	Children    int    `json:"children,omitempty"`
}

// Plan is a fully resolved itinerary returned by the backend. The flight,
// hotel and transport payloads are backend-defined; the client only displays
// them.
type Plan struct {
	ID         string         `json:"id,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	Flight     map[string]any `json:"flight,omitempty"`
	Hotel      map[string]any `json:"hotel,omitempty"`
	Transport  map[string]any `json:"transport,omitempty"`
	Days       []PlanDay      `json:"days,omitempty"`
	TotalPrice float64        `json:"total_price,omitempty"`
	Currency   string         `json:"currency,omitempty"`
}

type PlanDay struct {
	Date  string     `json:"date,omitempty"`
	Items []PlanItem `json:"items,omitempty"`
}

type PlanItem struct {
	Time  string `json:"time,omitempty"`
	Title string `json:"title"`
	Note  string `json:"note,omitempty"`
}

// PlanChoice is one of the pre-computed itinerary options offered before a
// final plan is selected.
type PlanChoice struct {
	ID         string  `json:"id"`
	Label      string  `json:"label,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	TotalPrice float64 `json:"total_price,omitempty"`
	Currency   string  `json:"currency,omitempty"`
}

// AgentState reports the backend agent's intent and step, used to drive UI copy.
type AgentState struct {
	Intent string `json:"intent,omitempty"`
	Step   string `json:"step,omitempty"`
}

type SearchResult struct {
	Kind     string  `json:"kind,omitempty"`
	Title    string  `json:"title"`
	Price    float64 `json:"price,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Detail   string  `json:"detail,omitempty"`
}

const (
	DefaultTitle = "ทริปใหม่"
	WelcomeText  = "สวัสดีค่ะ! บอกได้เลยว่าอยากไปเที่ยวที่ไหน เดี๋ยวช่วยวางแผนให้ค่ะ ✈️"
)

var welcomeSuggestions = []string{
	"ไปภูเก็ต 3 วัน",
	"เชียงใหม่ 2 คืน งบ 8,000",
	"ทะเลใกล้กรุงเทพ เสาร์อาทิตย์นี้",
}

// NewTrip returns a fresh trip seeded with the welcome message.
func NewTrip(messageID int64) *Trip {
	now := time.Now().UTC()
	return &Trip{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages: []Message{{
			ID:          messageID,
			Type:        MessageBot,
			Text:        WelcomeText,
			Suggestions: append([]string{}, welcomeSuggestions...),
		}},
	}
}
