package api

import "tripdesk/internal/trip"

const (
	TriggerUserMessage = "user_message"
	TriggerRefresh     = "refresh"
)

type ChatRequest struct {
	UserID       string `json:"user_id"`
	Message      string `json:"message"`
	Trigger      string `json:"trigger"`
	NoMemory     bool   `json:"no_memory,omitempty"`
	ClientTripID string `json:"client_trip_id"`
}

// ChatResponse is the shape shared by /api/chat and /api/select_choice.
type ChatResponse struct {
	Response      string              `json:"response"`
	Debug         map[string]any      `json:"debug,omitempty"`
	TravelSlots   *trip.TravelSlots   `json:"travel_slots,omitempty"`
	SearchResults []trip.SearchResult `json:"search_results,omitempty"`
	PlanChoices   []trip.PlanChoice   `json:"plan_choices,omitempty"`
	AgentState    *trip.AgentState    `json:"agent_state,omitempty"`
	Suggestions   []string            `json:"suggestions,omitempty"`
	CurrentPlan   *trip.Plan          `json:"current_plan,omitempty"`
	TripTitle     string              `json:"trip_title,omitempty"`
}

type SelectChoiceRequest struct {
	UserID   string `json:"user_id"`
	ChoiceID string `json:"choice_id"`
}

type BookingRequest struct {
	UserID      string         `json:"user_id"`
	TripID      string         `json:"trip_id"`
	UserProfile map[string]any `json:"user_profile"`
}

type BookingResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}
