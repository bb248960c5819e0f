package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/samber/lo"

	"tripdesk/internal/trip"
)

type tripItem struct {
	data trip.Trip
}

func (i tripItem) Title() string { return i.data.Title }
func (i tripItem) Description() string {
	return fmt.Sprintf("%d messages · %s", len(i.data.Messages), i.data.UpdatedAt.Format("02 Jan 15:04"))
}
func (i tripItem) FilterValue() string { return i.data.Title }

func buildTripItems(trips []trip.Trip) []list.Item {
	return lo.Map(trips, func(t trip.Trip, _ int) list.Item { return tripItem{data: t} })
}
