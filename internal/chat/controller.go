// Package chat holds the conversation state controller: it owns every trip
// mutation, the single in-flight request slot, the plan override, and the
// connectivity gate. The TUI and CLI only ever read snapshots and dispatch
// operations through it.
package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"tripdesk/internal/api"
	"tripdesk/internal/trip"
	"tripdesk/internal/utils"
)

const regenerateCooldown = 4 * time.Second

const (
	stoppedText       = "หยุดการตอบกลับแล้วค่ะ"
	connectionErrText = "ขออภัยค่ะ ตอนนี้เชื่อมต่อกับระบบไม่ได้ กรุณาลองใหม่อีกครั้งนะคะ"
	bookingOKText     = "ยืนยันการจองเรียบร้อยแล้วค่ะ 🎉"
	bookingFailText   = "ยืนยันการจองไม่สำเร็จค่ะ"
	choicePrefix      = "เลือกช้อยส์ "
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrOffline      = errors.New("backend unreachable")
)

// Backend is the slice of the api client the controller needs. Tests swap in
// a function-field fake.
type Backend interface {
	Health(ctx context.Context) error
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Reset(ctx context.Context, userID, clientTripID string)
	SelectChoice(ctx context.Context, userID, choiceID string) (*api.ChatResponse, error)
	ConfirmBooking(ctx context.Context, req api.BookingRequest) (*api.BookingResponse, error)
}

var _ Backend = (*api.Client)(nil)

type Controller struct {
	repo    *trip.Repository
	backend Backend
	logger  *utils.Logger
	userID  string
	profile map[string]any

	slot     requestSlot
	cooldown *cache.Cache

	mu        sync.Mutex
	typing    bool
	reachable bool
	editingID int64
	override  *Override
}

// Pending is an issued chat request: its cancellation context, its slot
// generation, and the wire request. Finish completes it.
type Pending struct {
	ctx    context.Context
	gen    uint64
	tripID string
	req    api.ChatRequest
}

// Turn is the outcome of one completed operation. Message is the bot message
// that was appended; nil means a stale completion was discarded. Err is the
// underlying failure, already surfaced to the user as message text.
type Turn struct {
	TripID  string
	Message *trip.Message
	Stopped bool
	Err     error
}

func NewController(repo *trip.Repository, backend Backend, userID string, logger *utils.Logger) *Controller {
	return &Controller{
		repo:      repo,
		backend:   backend,
		logger:    logger,
		userID:    userID,
		profile:   map[string]any{},
		cooldown:  cache.New(regenerateCooldown, time.Minute),
		reachable: true,
	}
}

// StartSend runs the synchronous half of a send: validation, edit truncation,
// appending the user message, and acquiring the request slot (which cancels
// whatever was in flight). The returned Pending must be passed to Finish.
func (c *Controller) StartSend(tripID, text string) (*Pending, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !c.Reachable() {
		return nil, ErrOffline
	}
	if _, ok := c.repo.Get(tripID); !ok {
		return nil, trip.ErrNotFound
	}

	if editID := c.takeEditing(); editID != 0 {
		// Edit-and-resend: drop the edited message and everything after it.
		if err := c.repo.TruncateBefore(tripID, editID); err != nil {
			c.logger.Debugf("edit truncation skipped: %v", err)
		}
	}

	userMsg := trip.Message{ID: c.repo.NextMessageID(), Type: trip.MessageUser, Text: text}
	if err := c.repo.AppendMessage(tripID, userMsg); err != nil {
		return nil, err
	}
	c.setTyping(true)
	ctx, gen := c.slot.acquire(context.Background())
	return &Pending{
		ctx:    ctx,
		gen:    gen,
		tripID: tripID,
		req: api.ChatRequest{
			UserID:       c.userID,
			Message:      text,
			Trigger:      api.TriggerUserMessage,
			ClientTripID: tripID,
		},
	}, nil
}

// StartRegenerate re-runs the bot continuation for an earlier user message.
// Throttled per message id: a second call within the cooldown window returns
// (nil, nil) and makes no network call. No new user message is appended; the
// old continuation is truncated away and replaced by the fresh response.
func (c *Controller) StartRegenerate(tripID string, messageID int64, userText string) (*Pending, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, ErrEmptyMessage
	}
	if !c.Reachable() {
		return nil, ErrOffline
	}
	key := strconv.FormatInt(messageID, 10)
	if err := c.cooldown.Add(key, time.Now(), cache.DefaultExpiration); err != nil {
		return nil, nil
	}
	if err := c.repo.TruncateAfter(tripID, messageID); err != nil {
		return nil, err
	}
	c.setTyping(true)
	ctx, gen := c.slot.acquire(context.Background())
	return &Pending{
		ctx:    ctx,
		gen:    gen,
		tripID: tripID,
		req: api.ChatRequest{
			UserID:       c.userID,
			Message:      userText,
			Trigger:      api.TriggerRefresh,
			NoMemory:     true,
			ClientTripID: tripID,
		},
	}, nil
}

// Finish runs the blocking half of a chat turn and converts every failure
// mode into an appended bot message. A completion whose slot generation went
// stale (a newer request took over) appends nothing.
func (c *Controller) Finish(p *Pending) Turn {
	resp, err := c.backend.Chat(p.ctx, p.req)
	owned := c.slot.release(p.gen)
	if !owned {
		return Turn{TripID: p.tripID}
	}
	c.setTyping(false)

	switch {
	case err == nil:
		c.setReachable(true)
		msg := c.appendBotResponse(p.tripID, resp)
		return Turn{TripID: p.tripID, Message: msg}
	case errors.Is(err, context.Canceled):
		msg := c.appendNotice(p.tripID, stoppedText)
		return Turn{TripID: p.tripID, Message: msg, Stopped: true}
	default:
		c.setReachable(false)
		c.logger.Warnf("chat request failed: %v", err)
		msg := c.appendNotice(p.tripID, connectionErrText)
		return Turn{TripID: p.tripID, Message: msg, Err: err}
	}
}

// Send is StartSend plus Finish, for callers that do not need the
// intermediate render (CLI, the select-choice fallback, tests).
func (c *Controller) Send(tripID, text string) Turn {
	p, err := c.StartSend(tripID, text)
	if err != nil {
		return Turn{TripID: tripID, Err: err}
	}
	return c.Finish(p)
}

// SelectPlanChoice commits one of the offered plan choices. When the
// dedicated endpoint is missing, the choice is replayed as a synthetic chat
// message, producing the same message shape as a normal turn.
func (c *Controller) SelectPlanChoice(tripID, choiceID string) Turn {
	c.setTyping(true)
	ctx, gen := c.slot.acquire(context.Background())
	resp, err := c.backend.SelectChoice(ctx, c.userID, choiceID)
	owned := c.slot.release(gen)
	if !owned {
		return Turn{TripID: tripID}
	}
	c.setTyping(false)

	switch {
	case err == nil:
		c.setReachable(true)
		msg := c.appendBotResponse(tripID, resp)
		if resp.CurrentPlan == nil {
			// Explicit "no plan available" from the backend, distinct from
			// "no change": drop the override instead of keeping a stale one.
			c.clearOverride()
		}
		return Turn{TripID: tripID, Message: msg}
	case errors.Is(err, api.ErrEndpointUnavailable):
		return c.Send(tripID, choicePrefix+choiceID)
	case errors.Is(err, context.Canceled):
		msg := c.appendNotice(tripID, stoppedText)
		return Turn{TripID: tripID, Message: msg, Stopped: true}
	default:
		c.setReachable(false)
		msg := c.appendNotice(tripID, connectionErrText)
		return Turn{TripID: tripID, Message: msg, Err: err}
	}
}

// ConfirmBooking submits the current trip for booking. Rejections are domain
// failures: surfaced verbatim, with no plan or connectivity state touched.
func (c *Controller) ConfirmBooking(tripID string) Turn {
	ctx, gen := c.slot.acquire(context.Background())
	resp, err := c.backend.ConfirmBooking(ctx, api.BookingRequest{
		UserID:      c.userID,
		TripID:      tripID,
		UserProfile: c.Profile(),
	})
	owned := c.slot.release(gen)
	if !owned {
		return Turn{TripID: tripID}
	}

	switch {
	case err == nil:
		text := resp.Message
		if text == "" {
			text = bookingOKText
		}
		msg := trip.Message{
			ID:         c.repo.NextMessageID(),
			Type:       trip.MessageBot,
			Text:       text,
			AgentState: &trip.AgentState{Intent: "booking", Step: "completed"},
		}
		if appendErr := c.repo.AppendMessage(tripID, msg); appendErr != nil {
			return Turn{TripID: tripID, Err: appendErr}
		}
		return Turn{TripID: tripID, Message: &msg}
	case errors.Is(err, context.Canceled):
		msg := c.appendNotice(tripID, stoppedText)
		return Turn{TripID: tripID, Message: msg, Stopped: true}
	default:
		text := bookingFailText
		var be *api.BookingError
		if errors.As(err, &be) && be.Detail != "" {
			text = bookingFailText + ": " + be.Detail
		}
		msg := c.appendNotice(tripID, text)
		return Turn{TripID: tripID, Message: msg, Err: err}
	}
}

// Stop cancels the in-flight request, if any. The cancelled operation itself
// appends its single "stopped" message; connectivity is untouched.
func (c *Controller) Stop() bool {
	stopped := c.slot.stop()
	c.setTyping(false)
	return stopped
}

// CheckHealth probes the backend and updates the reachability gate.
func (c *Controller) CheckHealth(ctx context.Context) bool {
	err := c.backend.Health(ctx)
	if err != nil {
		c.logger.Debugf("health check failed: %v", err)
	}
	c.setReachable(err == nil)
	return err == nil
}

// NewTrip creates and activates a fresh trip and asks the backend to drop any
// server-side memory for it (fire and forget).
func (c *Controller) NewTrip() trip.Trip {
	t := c.repo.Create()
	go c.backend.Reset(context.Background(), c.userID, t.ID)
	return t
}

func (c *Controller) DeleteTrip(tripID string) error {
	return c.repo.Delete(tripID)
}

// StartEdit marks a user message for edit-and-resend; the next StartSend on
// the trip truncates back to before it.
func (c *Controller) StartEdit(messageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = messageID
}

func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = 0
}

func (c *Controller) EditingID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID
}

func (c *Controller) Typing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *Controller) Reachable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reachable
}

// Override returns a copy of the current plan override, or nil.
func (c *Controller) Override() *Override {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.override == nil {
		return nil
	}
	out := *c.override
	return &out
}

func (c *Controller) Profile() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.profile))
	for k, v := range c.profile {
		out[k] = v
	}
	return out
}

func (c *Controller) SetProfile(profile map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = profile
}

// appendBotResponse turns a backend reply into the appended bot message and
// applies its side effects: plan override and server-suggested title.
func (c *Controller) appendBotResponse(tripID string, resp *api.ChatResponse) *trip.Message {
	msg := trip.Message{
		ID:            c.repo.NextMessageID(),
		Type:          trip.MessageBot,
		Text:          resp.Response,
		Debug:         resp.Debug,
		TravelSlots:   resp.TravelSlots,
		SearchResults: resp.SearchResults,
		PlanChoices:   resp.PlanChoices,
		AgentState:    resp.AgentState,
		Suggestions:   resp.Suggestions,
		CurrentPlan:   resp.CurrentPlan,
		TripTitle:     resp.TripTitle,
	}
	if err := c.repo.AppendMessage(tripID, msg); err != nil {
		c.logger.Warnf("append failed: %v", err)
		return nil
	}
	if resp.CurrentPlan != nil {
		c.setOverride(resp.CurrentPlan, resp.TravelSlots)
	}
	if resp.TripTitle != "" {
		if err := c.repo.Rename(tripID, resp.TripTitle); err != nil {
			c.logger.Debugf("rename failed: %v", err)
		}
	}
	return &msg
}

func (c *Controller) appendNotice(tripID, text string) *trip.Message {
	msg := trip.Message{ID: c.repo.NextMessageID(), Type: trip.MessageBot, Text: text}
	if err := c.repo.AppendMessage(tripID, msg); err != nil {
		c.logger.Warnf("append failed: %v", err)
		return nil
	}
	return &msg
}

func (c *Controller) setOverride(plan *trip.Plan, slots *trip.TravelSlots) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = &Override{Plan: plan, Slots: slots}
}

func (c *Controller) clearOverride() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = nil
}

func (c *Controller) setTyping(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = v
}

func (c *Controller) setReachable(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reachable = v
}

func (c *Controller) takeEditing() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.editingID
	c.editingID = 0
	return id
}
