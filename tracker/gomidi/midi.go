package gomidi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackerseq/jacker/ringbuffer"
	"github.com/jackerseq/jacker/tracker"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	RTMIDIContext struct {
		driver *rtmididrv.Driver
		log    *logrus.Entry
	}

	// Output is a tracker.PlayerOutput sending the events of the player to a
	// MIDI output port. The player writes the events, timestamped in
	// samples, into a ring buffer from the audio goroutine; a goroutine of
	// the output sends them to the port when they are due. The sample clock
	// is anchored to the wall clock at the first block, and latency is added
	// to every event so that events of a block computed ahead of time are not
	// late.
	Output struct {
		out        drivers.Out
		log        *logrus.Entry
		queue      *ringbuffer.RingBuffer[timestampedEvent]
		encoder    *tracker.MIDIEncoder
		sampleRate int
		latency    time.Duration

		blockStart int64        // sample position of the current block; audio goroutine only
		startNanos atomic.Int64 // wall clock time of sample 0

		cancel context.CancelFunc
		wg     sync.WaitGroup
	}

	timestampedEvent struct {
		sample int64
		tracker.OutputEvent
	}
)

// ErrQueueFull is returned by WriteEvent when the goroutine sending to the
// port has fallen behind.
var ErrQueueFull = errors.New("MIDI output queue full")

const pollInterval = time.Millisecond

// NewContext opens the driver. A context without a driver has no outputs.
func NewContext(log *logrus.Entry) *RTMIDIContext {
	m := RTMIDIContext{log: log}
	var err error
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available
	if m.driver, err = rtmididrv.New(); err != nil {
		log.WithError(err).Warn("MIDI driver not available")
		m.driver = nil
	}
	return &m
}

// Outputs yields the MIDI output ports of the system.
func (c *RTMIDIContext) Outputs(yield func(drivers.Out) bool) {
	if c.driver == nil {
		return
	}
	outs, err := c.driver.Outs()
	if err != nil {
		c.log.WithError(err).Warn("listing MIDI outputs failed")
		return
	}
	for _, out := range outs {
		if !yield(out) {
			break
		}
	}
}

// OpenOutput opens the first output port whose name starts with namePrefix;
// an empty prefix takes the first port.
func (c *RTMIDIContext) OpenOutput(namePrefix string, prefs tracker.Preferences) (*Output, error) {
	if c.driver == nil {
		return nil, errors.New("no MIDI driver available")
	}
	for out := range c.Outputs {
		if !strings.HasPrefix(out.String(), namePrefix) {
			continue
		}
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("opening MIDI output %q failed: %w", out.String(), err)
		}
		c.log.WithField("port", out.String()).Info("MIDI output opened")
		return NewOutput(out, prefs, c.log), nil
	}
	if namePrefix == "" {
		return nil, errors.New("could not find any MIDI output")
	}
	return nil, fmt.Errorf("could not find any MIDI output starting with %q", namePrefix)
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	c.driver.Close()
}

// NewOutput starts sending to an opened port.
func NewOutput(out drivers.Out, prefs tracker.Preferences, log *logrus.Entry) *Output {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Output{
		out:        out,
		log:        log.WithField("port", out.String()),
		queue:      ringbuffer.New[timestampedEvent](prefs.MIDIBuffer),
		encoder:    tracker.NewMIDIEncoder(prefs.Velocity),
		sampleRate: prefs.SampleRate,
		latency:    time.Duration(prefs.AudioBuffer) * time.Second / time.Duration(prefs.SampleRate),
		cancel:     cancel,
	}
	o.wg.Add(1)
	go o.run(ctx)
	return o
}

// WriteEvent queues an event; called from the audio goroutine.
func (o *Output) WriteEvent(e tracker.OutputEvent) error {
	if !o.queue.Push(timestampedEvent{sample: o.blockStart + int64(e.Offset), OutputEvent: e}) {
		return ErrQueueFull
	}
	return nil
}

// FinishBlock advances the sample clock; called from the audio goroutine.
func (o *Output) FinishBlock(nsamples int) {
	if o.blockStart == 0 {
		o.startNanos.CompareAndSwap(0, time.Now().UnixNano())
	}
	o.blockStart += int64(nsamples)
}

func (o *Output) run(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var msgs []midi.Message
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			start := o.startNanos.Load()
			if start == 0 {
				continue
			}
			for {
				e, ok := o.queue.Peek()
				if !ok || now.Before(o.due(start, e.sample)) {
					break
				}
				o.queue.Pop()
				msgs = o.encoder.Append(msgs[:0], e.OutputEvent)
				for _, msg := range msgs {
					if err := o.out.Send(msg); err != nil {
						o.log.WithError(err).WithField("message", msg.String()).Warn("sending MIDI failed")
					}
				}
			}
		}
	}
}

func (o *Output) due(startNanos, sample int64) time.Time {
	return time.Unix(0, startNanos).Add(time.Duration(sample)*time.Second/time.Duration(o.sampleRate) + o.latency)
}

// Close stops the output goroutine, silences every channel and closes the
// port. Events still in the queue are discarded.
func (o *Output) Close() error {
	o.cancel()
	o.wg.Wait()
	for ch := uint8(0); ch < 16; ch++ {
		o.out.Send(midi.ControlChange(ch, midi.AllNotesOff, 0))
	}
	return o.out.Close()
}
