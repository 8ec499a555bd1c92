package logic

// Default debounce timings in ticks (1 tick = 1 ms).
const (
	DefaultDebounceTicks  = 50
	DefaultLongPressTicks = 1000
)

// Debouncer turns raw button samples into press events.
// A level must hold for the debounce period before it becomes stable.
// A stable press held past the long-press threshold yields ButtonLongPress
// once, at the moment the threshold is crossed; a release before that yields
// ButtonShortPress. Each physical press produces at most one event.
type Debouncer struct {
	debounce  uint64
	longPress uint64

	// Current stable (debounced) level
	stable bool
	// Pending level during debounce
	pending       bool
	pendingActive bool
	// Tick when pending level was first observed
	pendingSince uint64
	// Tick when the current press became stable
	pressedAt uint64
	longFired bool
}

// NewDebouncer creates a debouncer with the given timings in ticks.
func NewDebouncer(debounceTicks, longPressTicks uint64) *Debouncer {
	return &Debouncer{
		debounce:  debounceTicks,
		longPress: longPressTicks,
	}
}

// Process takes a raw sample (true = pressed) taken at tick now and returns
// the event produced by it, or ButtonIdle.
func (d *Debouncer) Process(pressed bool, now uint64) ButtonState {
	if pressed == d.stable {
		// No change from stable level, clear any pending
		d.pendingActive = false
		return d.checkLong(now)
	}

	if !d.pendingActive || d.pending != pressed {
		d.pending = pressed
		d.pendingSince = now
		d.pendingActive = true
	}

	if now-d.pendingSince < d.debounce {
		return d.checkLong(now)
	}

	d.stable = pressed
	d.pendingActive = false

	if pressed {
		d.pressedAt = now
		d.longFired = false
		return d.checkLong(now)
	}

	if d.longFired {
		return ButtonIdle
	}
	return ButtonShortPress
}

func (d *Debouncer) checkLong(now uint64) ButtonState {
	if !d.stable || d.longFired {
		return ButtonIdle
	}
	if now-d.pressedAt >= d.longPress {
		d.longFired = true
		return ButtonLongPress
	}
	return ButtonIdle
}

// Pressed reports the current debounced level.
func (d *Debouncer) Pressed() bool {
	return d.stable
}
