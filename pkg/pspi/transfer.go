package pspi

import (
	"fmt"
	"runtime"
	"time"
)

// send writes the next unit of the pending transfer. Callers hold c.mu.
func (c *Channel) send() error {
	n := c.UnitBytes()
	if c.txLeft < n {
		return ErrShortBuffer
	}
	if c.regs.ReadStatus()&StatBusy != 0 {
		return ErrBusy
	}
	c.txLeft -= n
	c.regs.WriteData(c.encode(c.tx[:n]))
	c.tx = c.tx[n:]
	return nil
}

// receive stores the unit sitting in the data register. Callers hold c.mu.
func (c *Channel) receive() error {
	n := c.UnitBytes()
	if c.rxLeft < n {
		return ErrShortBuffer
	}
	c.rxLeft -= n
	c.decode(c.regs.ReadData(), c.rx[:n])
	c.rx = c.rx[n:]
	return nil
}

// Transfer shifts n bytes from tx while capturing into rx, one unit per
// interrupt. It issues the first unit and blocks until the interrupt handler
// has received the last one.
func (c *Channel) Transfer(tx, rx []byte, n int) error {
	if !c.irqAttached {
		return ErrNoInterrupt
	}
	if n <= 0 || n%c.UnitBytes() != 0 {
		return fmt.Errorf("%w: %d bytes", ErrInvalidLength, n)
	}
	if len(tx) < n || len(rx) < n {
		return fmt.Errorf("%w: need %d bytes, have tx %d rx %d", ErrShortBuffer, n, len(tx), len(rx))
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.tx, c.rx = tx[:n], rx[:n]
	c.txLeft, c.rxLeft = n, n
	c.done = done
	c.mu.Unlock()

	ctl := c.regs.ReadControl()
	c.regs.WriteControl(ctl&^CtlIntWrite | CtlIntRead)
	defer func() {
		c.regs.WriteControl(c.regs.ReadControl() &^ CtlIntRead)
		c.mu.Lock()
		c.done = nil
		c.txLeft, c.rxLeft = 0, 0
		c.tx, c.rx = nil, nil
		c.mu.Unlock()
	}()

	c.mu.Lock()
	err := c.send()
	c.mu.Unlock()
	if err != nil {
		logger.WithField("op", "transfer").Error(err)
		return err
	}

	timer := time.NewTimer(c.cfg.CompletionTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		logger.WithField("op", "transfer").Errorf("no completion after %v", c.cfg.CompletionTimeout)
		return ErrTimeout
	}
}

// handleInterrupt drains a received unit and issues the next one while any
// remain. Completion is signalled once every byte has been received.
func (c *Channel) handleInterrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	stat := c.regs.ReadStatus()
	if stat&StatRxFull != 0 {
		if c.rxLeft > 0 {
			if err := c.receive(); err != nil {
				logger.WithField("op", "irq").Error(err)
			}
		}
		if c.rxLeft == 0 && c.done != nil {
			close(c.done)
			c.done = nil
		}
	}
	if stat&StatBusy == 0 && c.txLeft > 0 {
		if err := c.send(); err != nil {
			logger.WithField("op", "irq").Error(err)
		}
	}
}

// Exchange shifts one unit by busy-polling the status register. tx may be
// short or nil (missing bytes shift zeros); rx may be short or nil.
func (c *Channel) Exchange(tx, rx []byte) error {
	if err := c.waitStatus(StatBusy, false); err != nil {
		return err
	}
	c.regs.WriteData(c.encode(tx))
	if err := c.waitStatus(StatRxFull, true); err != nil {
		return err
	}
	c.decode(c.regs.ReadData(), rx)
	return nil
}

func (c *Channel) waitStatus(mask uint8, set bool) error {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	for (c.regs.ReadStatus()&mask != 0) != set {
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		runtime.Gosched()
	}
	return nil
}
