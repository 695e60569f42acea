package popup

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// NodeID is the fixed identifier of the single popup element on the page.
const NodeID = "melingo-popup"

// ActionAccept is the only action that emits a tracking event; every action
// ends with the popup hidden.
const ActionAccept = "accept"

// View is what a renderer receives to draw the popup.
type View struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	TriggerType string `json:"trigger_type"`
}

// Renderer applies popup lifecycle steps to the page. Mount inserts the
// hidden node, SetVisible flips it to the visible CSS state, Dismiss starts
// the exit transition, Unmount removes the node. Calls for an id that is no
// longer in the document must be no-ops.
type Renderer interface {
	Mount(view View)
	SetVisible(id string)
	Dismiss(id string)
	Unmount(id string)
}

// Config holds the popup timing constants.
type Config struct {
	AutoDismiss time.Duration // visible lifetime before self-dismissing
	Transition  time.Duration // exit animation window before removal
	EnterDelay  time.Duration // deferred flip to visible so entry animations apply
}

type state int

const (
	stateAbsent state = iota
	stateVisible
	stateDismissing
)

// Controller is the popup state machine: Absent -> Visible -> Dismissing ->
// Absent. At most one popup instance exists at any time.
type Controller struct {
	renderer Renderer
	cfg      Config

	// track emits the synthetic interaction event on acceptance.
	track func(data map[string]any)

	mu      sync.Mutex
	state   state
	current View
	gen     int // invalidates timers armed for superseded instances

	autoTimer  *time.Timer
	enterTimer *time.Timer
	hideTimer  *time.Timer
}

func NewController(renderer Renderer, cfg Config, track func(data map[string]any)) *Controller {
	if track == nil {
		track = func(map[string]any) {}
	}
	return &Controller{
		renderer: renderer,
		cfg:      cfg,
		track:    track,
	}
}

// Show displays a popup with the given message. Any existing instance is
// forced straight to Absent first, without its exit animation.
func (c *Controller) Show(message, triggerType string) {
	c.mu.Lock()

	if c.state != stateAbsent {
		c.stopTimersLocked()
		c.renderer.Unmount(NodeID)
		c.state = stateAbsent
	}

	c.gen++
	gen := c.gen

	look := lookFor(triggerType)
	c.current = View{
		ID:          NodeID,
		Message:     message,
		Title:       look.title,
		Icon:        look.icon,
		TriggerType: triggerType,
	}
	c.renderer.Mount(c.current)
	c.state = stateVisible

	// Deferred transition to the visible CSS state so entry animations apply.
	c.enterTimer = time.AfterFunc(c.cfg.EnterDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen && c.state == stateVisible {
			c.renderer.SetVisible(NodeID)
		}
	})

	c.autoTimer = time.AfterFunc(c.cfg.AutoDismiss, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen {
			c.hideLocked()
		}
	})

	c.mu.Unlock()

	log.Debug().Str("component", "popup").Str("trigger_type", triggerType).Msg("Popup shown")
}

// Hide starts the exit transition and removes the node once it ends. It is a
// no-op when the popup is absent and idempotent while dismissing.
func (c *Controller) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hideLocked()
}

func (c *Controller) hideLocked() {
	if c.state != stateVisible {
		return
	}

	c.state = stateDismissing
	if c.autoTimer != nil {
		c.autoTimer.Stop()
	}
	if c.enterTimer != nil {
		c.enterTimer.Stop()
	}
	c.renderer.Dismiss(NodeID)

	gen := c.gen
	c.hideTimer = time.AfterFunc(c.cfg.Transition, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A superseding Show may already have torn this instance down.
		if c.gen == gen && c.state == stateDismissing {
			c.renderer.Unmount(NodeID)
			c.state = stateAbsent
		}
	})

	log.Debug().Str("component", "popup").Msg("Popup dismissing")
}

// HandleAction processes a user action on the popup. Accept is observable in
// the event stream; every action closes the popup.
func (c *Controller) HandleAction(action string) {
	c.mu.Lock()
	if c.state == stateAbsent {
		c.mu.Unlock()
		return
	}
	trigger := c.current.TriggerType
	c.mu.Unlock()

	if action == ActionAccept {
		c.track(map[string]any{
			"custom_event": "popup_interaction",
			"popup_action": ActionAccept,
			"trigger_type": trigger,
		})
	}

	log.Debug().Str("component", "popup").Str("action", action).Msg("Popup action")
	c.Hide()
}

// Visible reports whether a popup instance is currently in the document.
func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateAbsent
}

func (c *Controller) stopTimersLocked() {
	if c.autoTimer != nil {
		c.autoTimer.Stop()
	}
	if c.enterTimer != nil {
		c.enterTimer.Stop()
	}
	if c.hideTimer != nil {
		c.hideTimer.Stop()
	}
}

type look struct {
	title string
	icon  string
}

var triggerLooks = map[string]look{
	"discount":       {title: "Special Offer", icon: "🎉"},
	"urgency":        {title: "Don't Miss Out", icon: "⏰"},
	"help":           {title: "Need a Hand?", icon: "💬"},
	"recommendation": {title: "Picked For You", icon: "✨"},
}

var defaultLook = look{title: "Hello There", icon: "🛍️"}

// lookFor selects popup copy and icon for a trigger type, falling back to a
// default for unknown types.
func lookFor(triggerType string) look {
	if l, ok := triggerLooks[triggerType]; ok {
		return l
	}
	return defaultLook
}
