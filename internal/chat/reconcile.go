package chat

import (
	"strings"

	"github.com/samber/lo"

	"tripdesk/internal/trip"
)

const (
	// Backend states whose plan payload must not resurrect a stale itinerary.
	stepNoPreviousChoices = "no_previous_choices"
	noChoicesMarker       = "ไม่มีช้อยส์ให้เลือก"
)

// Override is the locally held plan selection that wins over whatever the
// latest bot message would otherwise imply. It keeps the plan summary stable
// while unrelated bot messages (errors, clarifying questions) arrive after a
// plan was chosen.
type Override struct {
	Plan  *trip.Plan
	Slots *trip.TravelSlots
}

// PlanView is the derived "effective plan" to display.
type PlanView struct {
	MessageID int64
	Plan      *trip.Plan
	Slots     *trip.TravelSlots
	// Transient marks a view synthesized from the override alone, with no
	// qualifying bot message behind it.
	Transient bool
}

// EffectivePlan reconciles the message history with the override. Pure: no
// side effects, recomputed on demand.
func EffectivePlan(messages []trip.Message, override *Override) *PlanView {
	found, _, ok := lo.FindLastIndexOf(messages, carriesPlan)
	if override != nil {
		if ok {
			return &PlanView{MessageID: found.ID, Plan: override.Plan, Slots: override.Slots}
		}
		return &PlanView{Plan: override.Plan, Slots: override.Slots, Transient: true}
	}
	if !ok {
		return nil
	}
	return &PlanView{MessageID: found.ID, Plan: found.CurrentPlan, Slots: found.TravelSlots}
}

// carriesPlan reports whether a bot message holds an actionable current plan.
// Responses that merely explain the absence of choices are excluded.
func carriesPlan(m trip.Message) bool {
	if m.Type != trip.MessageBot || m.CurrentPlan == nil {
		return false
	}
	if m.AgentState != nil && m.AgentState.Step == stepNoPreviousChoices {
		return false
	}
	if strings.Contains(m.Text, noChoicesMarker) {
		return false
	}
	return true
}
