// Package controller is the session control loop: boot sequencing, profile
// selection, the per-session lifecycle and the fatal halt.
package controller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sweeney/diag-logger/internal/engine"
	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/operator"
	"github.com/sweeney/diag-logger/internal/power"
	"github.com/sweeney/diag-logger/internal/profile"
	"github.com/sweeney/diag-logger/internal/reset"
	"github.com/sweeney/diag-logger/internal/rtc"
	"github.com/sweeney/diag-logger/internal/storage"
	"github.com/sweeney/diag-logger/internal/tick"
)

// Boot timings in ticks.
const (
	SettleTicks      = 1000
	ClockSettleTicks = 1000
	ErrorBeepTicks   = 1000
)

// DebugFileName enables engine debug output when present on the card.
const DebugFileName = "DEBUG.TXT"

// SystemContext holds everything the control loop owns or drives.
type SystemContext struct {
	Counters *tick.Counters
	Mailbox  *operator.Mailbox
	Power    *power.Controller
	Panel    *operator.Panel
	Medium   storage.Medium
	Clock    rtc.Clock
	Engine   engine.Engine
	Resetter reset.Resetter
	Observer logic.Observer

	HWVersion string
	SWVersion string
}

// FatalError is a condition that ends in the fatal halt.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(reason string, err error) error {
	return &FatalError{Reason: reason, Err: err}
}

// Controller runs the state machine. All state below is owned by the
// goroutine calling Run; the mutex only guards reads from other goroutines.
type Controller struct {
	sys SystemContext

	profiles *profile.Store
	selector *logic.Selector
	debug    bool

	mu       sync.Mutex
	phase    logic.Phase
	selected int
	files    *storage.Manager
}

// New creates a controller. Observer may be nil.
func New(sys SystemContext) *Controller {
	if sys.Observer == nil {
		sys.Observer = logic.Observers{}
	}
	return &Controller{sys: sys, phase: logic.PhaseBooting}
}

// Phase returns the current phase.
func (c *Controller) Phase() logic.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Selected returns the profile the next LongPress will start, or 0 before
// profiles are loaded.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Files returns the log file manager, nil before boot has mounted the card.
func (c *Controller) Files() *storage.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files
}

// Run boots the logger and runs sessions until ctx is done or a fatal halt
// ends in a reset, in which case it returns reset.ErrReset.
func (c *Controller) Run(ctx context.Context) error {
	err := c.boot(ctx)
	for err == nil {
		var idx int
		idx, err = c.awaitStart(ctx)
		if err != nil {
			break
		}

		var rec logic.Recovery
		rec, err = c.session(ctx, idx)
		if err != nil {
			break
		}
		if rec.Action == logic.ActionHalt {
			err = fatal("shutdown requested", nil)
			break
		}

		c.setPhase(logic.PhaseRecoveryDelay)
		err = c.sys.Counters.Wait(ctx, tick.Timer2)
	}

	var fe *FatalError
	if errors.As(err, &fe) {
		return c.halt(ctx, fe)
	}
	if ctx.Err() != nil {
		if err := c.sys.Power.PowerOff(); err != nil {
			log.Printf("controller: power off: %v", err)
		}
	}
	return err
}

func (c *Controller) now() time.Time {
	t, err := c.sys.Clock.Now()
	if err != nil {
		log.Printf("controller: read clock: %v", err)
		return time.Now()
	}
	return t
}

func (c *Controller) setPhase(p logic.Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	log.Printf("controller: phase %s", p)
	c.emit(logic.Event{Type: logic.EventPhase})
}

// emit fills the common fields and delivers ev.
func (c *Controller) emit(ev logic.Event) {
	ev.Timestamp = c.now()
	ev.Phase = c.Phase()
	ev.Selected = c.Selected()
	ev.Debug = c.debug
	if c.profiles != nil {
		ev.ProfileCount = c.profiles.Count()
	}
	c.sys.Observer.Observe(ev)
}

func (c *Controller) usage(ev *logic.Event) {
	u, err := c.sys.Medium.Usage()
	if err != nil {
		log.Printf("controller: card usage: %v", err)
		return
	}
	ev.CardTotal = u.Total
	ev.CardFree = u.Free
}

// boot brings the card up and loads profiles. Failures are *FatalError.
func (c *Controller) boot(ctx context.Context) error {
	c.setPhase(logic.PhaseBooting)
	c.sys.Panel.Idle()

	if err := c.sys.Power.PowerOff(); err != nil {
		log.Printf("controller: power off: %v", err)
	}
	if err := c.sys.Power.BeginSettle(); err != nil {
		return fatal("storage power", err)
	}
	if err := c.sys.Counters.Delay(ctx, tick.Timer2, SettleTicks); err != nil {
		return err
	}
	if err := c.sys.Power.PowerOn(); err != nil {
		return fatal("storage power", err)
	}

	log.Printf("%s %s", c.sys.HWVersion, c.sys.SWVersion)

	if err := c.sys.Counters.Delay(ctx, tick.Timer2, ClockSettleTicks); err != nil {
		return err
	}
	c.sys.Mailbox.Clear()

	if err := c.sys.Medium.Mount(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fatal("error mounting card", err)
	}

	c.setClockFromFile()
	c.debug = c.sys.Medium.Exists(DebugFileName)
	if c.debug {
		log.Printf("controller: debug mode on")
	}

	store, err := c.loadProfiles()
	if err != nil {
		return fatal("error reading config", err)
	}
	c.profiles = store
	c.selector = logic.NewSelector(store.Count())
	c.mu.Lock()
	c.selected = c.selector.Current()
	c.mu.Unlock()
	log.Printf("controller: %d profiles: %v", store.Count(), store.Names())

	files := storage.NewManager(c.sys.Medium)
	c.mu.Lock()
	c.files = files
	c.mu.Unlock()
	n, ok := c.files.AllocateNextFileNumber()
	if !ok {
		return fatal("can't get number of next file", nil)
	}
	log.Printf("controller: file number %d", n)

	ev := logic.Event{
		Type:       logic.EventBooted,
		Profiles:   store.Names(),
		FileNumber: n,
		FileName:   storage.FileName(n),
	}
	c.usage(&ev)
	c.emit(ev)
	return nil
}

func (c *Controller) setClockFromFile() {
	if !c.sys.Medium.Exists(rtc.FileName) {
		return
	}
	rc, err := c.sys.Medium.Open(rtc.FileName)
	if err != nil {
		log.Printf("controller: open %s: %v", rtc.FileName, err)
		return
	}
	defer rc.Close()

	t, err := rtc.SetFromFile(rc, c.sys.Clock)
	if err != nil {
		log.Printf("controller: %s: %v", rtc.FileName, err)
		return
	}
	log.Printf("Time set: %s", t.Format(time.ANSIC))
}

func (c *Controller) loadProfiles() (*profile.Store, error) {
	rc, err := c.sys.Medium.Open(profile.FileName)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return profile.Load(rc)
}

// awaitStart waits for a LongPress and returns the profile to run. The
// selection advances as the press is taken.
func (c *Controller) awaitStart(ctx context.Context) (int, error) {
	c.sys.Panel.Idle()
	c.sys.Mailbox.Clear()
	c.setPhase(logic.PhaseAwaitingStart)

	for {
		if _, err := c.sys.Counters.Next(ctx); err != nil {
			return 0, err
		}
		switch c.sys.Mailbox.Take() {
		case logic.ButtonLongPress:
			idx := c.selector.Current()
			next := c.selector.Advance()
			c.mu.Lock()
			c.selected = next
			c.mu.Unlock()
			return idx, nil
		case logic.ButtonShortPress:
			log.Printf("controller: short press ignored while idle")
		}
	}
}
