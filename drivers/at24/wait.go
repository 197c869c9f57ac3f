package at24

import (
	"time"

	"eepromcode-go/errcode"
)

// deadlineStride is how many polls pass between wall-clock checks.
const deadlineStride = 64

// budget bounds a single wait. The zero value is unbounded.
type budget struct {
	polls    uint32
	limit    uint32
	deadline time.Time
}

func (e *Engine) newBudget() budget {
	b := budget{limit: e.cfg.PollBudget}
	if e.cfg.Timeout > 0 {
		b.deadline = time.Now().Add(e.cfg.Timeout)
	}
	return b
}

// spent counts one poll and reports whether the wait must give up.
func (b *budget) spent() bool {
	b.polls++
	if b.limit != 0 && b.polls >= b.limit {
		return true
	}
	if !b.deadline.IsZero() && b.polls%deadlineStride == 0 {
		return time.Now().After(b.deadline)
	}
	return false
}

// waitCtl1Clear spins until every bit in mask is clear in CTL1.
func (e *Engine) waitCtl1Clear(op string, mask uint8) error {
	b := e.newBudget()
	for e.c.Ctl1()&mask != 0 {
		if b.spent() {
			return errcode.New(errcode.BusTimeout, op, "condition still pending")
		}
	}
	return nil
}

// waitFlag spins until any bit in mask is set in IFG2.
func (e *Engine) waitFlag(op string, mask uint8) error {
	b := e.newBudget()
	for e.c.Flags()&mask == 0 {
		if b.spent() {
			return errcode.New(errcode.BusTimeout, op, "flag never set")
		}
	}
	return nil
}
