package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofrs/uuid"

	"github.com/sweeney/diag-logger/internal/logic"
	"github.com/sweeney/diag-logger/internal/profile"
	"github.com/sweeney/diag-logger/internal/reset"
	"github.com/sweeney/diag-logger/internal/storage"
	"github.com/sweeney/diag-logger/internal/tick"
)

// session runs one logging session with profile idx. The log file is closed
// on every path out. On return Timer2 holds the post-session delay.
func (c *Controller) session(ctx context.Context, idx int) (logic.Recovery, error) {
	p, ok := c.profiles.Get(idx)
	if !ok {
		return logic.Recovery{}, fatal("profile lookup", nil)
	}

	c.setPhase(logic.PhaseLogging)
	c.sys.Panel.Busy()

	f, err := c.files.CreateNext()
	if err != nil {
		return logic.Recovery{}, fatal("error creating log file", err)
	}
	defer func() {
		if err := c.files.CloseLogFile(f); err != nil && !errors.Is(err, storage.ErrAlreadyClosed) {
			log.Printf("controller: close %s: %v", f.Name(), err)
		}
	}()

	id, err := uuid.NewV4()
	if err != nil {
		log.Printf("controller: session id: %v", err)
	}
	sessionID := id.String()

	f.WriteLine(fmt.Sprintf("%s, sw_ver: %s", c.sys.HWVersion, c.sys.SWVersion))
	f.WriteLine("Current time: " + c.now().Format(time.ANSIC))
	f.WriteLine(fmt.Sprintf("Profile: %d %s", idx, p.Name))
	f.WriteLine("Session: " + sessionID)
	c.sys.Counters.Arm(tick.TimerProtocol, 0)
	c.sys.Counters.ResetElapsed()
	f.WriteLine(fmt.Sprintf("CAN %dkbit", p.Bitrate/1000))
	f.WriteLine("")

	log.Printf("controller: session %s: profile %d (%s) -> %s", sessionID, idx, p.Name, f.Name())
	c.emit(logic.Event{
		Type:         logic.EventSessionStart,
		ProfileIndex: idx,
		ProfileName:  p.Name,
		FileNumber:   f.Number(),
		FileName:     f.Name(),
		SessionID:    sessionID,
	})

	result := c.runEngine(ctx, p, f)

	rec := logic.Recover(result)
	c.sys.Counters.Arm(tick.Timer2, rec.DelayTicks)
	if rec.Action != logic.ActionHalt {
		f.WriteLine(result.Trailer())
	}
	if err := c.files.CloseLogFile(f); err != nil {
		log.Printf("controller: close %s: %v", f.Name(), err)
	}
	c.files.Advance()

	sec, sub := c.sys.Counters.Elapsed()
	log.Printf("controller: session %s ended: %s after %d.%03ds, %d write errors",
		sessionID, result, sec, sub, f.WriteErrors())

	ev := logic.Event{
		Type:         logic.EventSessionEnd,
		ProfileIndex: idx,
		ProfileName:  p.Name,
		FileNumber:   f.Number(),
		FileName:     f.Name(),
		SessionID:    sessionID,
		Result:       result,
		WriteErrors:  f.WriteErrors(),
	}
	c.usage(&ev)
	c.emit(ev)
	return rec, nil
}

// runEngine runs the protocol session. A ShortPress while it runs asks the
// engine to stop.
func (c *Controller) runEngine(ctx context.Context, p profile.Profile, f *storage.SessionFile) logic.SessionResult {
	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.sys.Mailbox.Clear()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, err := c.sys.Counters.Next(sessCtx); err != nil {
				return
			}
			if c.sys.Mailbox.TakeIf(logic.ButtonShortPress) {
				log.Printf("controller: stop requested by operator")
				cancel()
				return
			}
		}
	}()

	result := c.sys.Engine.RunSession(sessCtx, p, f, c.debug)
	cancel()
	<-done
	return result
}

// halt powers the card down, signals the error and waits for a confirming
// LongPress before resetting the device. It has no other exit except ctx.
func (c *Controller) halt(ctx context.Context, fe *FatalError) error {
	log.Printf("controller: fatal: %v", fe)

	if err := c.sys.Power.PowerOff(); err != nil {
		log.Printf("controller: power off: %v", err)
	}
	c.sys.Mailbox.Clear()
	c.setPhase(logic.PhaseHalted)
	c.emit(logic.Event{Type: logic.EventFatal, Reason: fe.Error()})

	if err := c.sys.Panel.Error(ctx, c.sys.Counters, ErrorBeepTicks); err != nil {
		return err
	}

	for {
		if _, err := c.sys.Counters.Next(ctx); err != nil {
			return err
		}
		if c.sys.Mailbox.Take() == logic.ButtonLongPress {
			break
		}
	}

	log.Printf("controller: confirmed, resetting")
	if err := c.sys.Resetter.Reset(); err != nil {
		log.Printf("controller: reset: %v", err)
	}
	return reset.ErrReset
}
