package tracker

import (
	"math"

	"github.com/jackerseq/jacker"
)

type (
	// Clock drives a Player from an audio callback. The audio callback asks
	// for blocks of samples; the clock converts the block into the frames
	// whose start falls within it, at the tempo of the player, and converts
	// the frame offsets of the resolved events back into sample offsets. The
	// fractional position of the next frame is carried over from block to
	// block, so the frames never drift against the sample clock.
	//
	// Clock implements jacker.AudioProcessor. It fills the audio buffers with
	// silence: the sequencer produces events, not sound.
	Clock struct {
		player     *Player
		out        PlayerOutput
		sampleRate int
		next       float64 // sample offset of the next frame, relative to the start of the block
		adapter    sampleOutput
	}

	// sampleOutput converts frame offsets into sample offsets.
	sampleOutput struct {
		out             PlayerOutput
		first           float64
		samplesPerFrame float64
		nsamples        int
	}
)

// NewClock returns a clock driving player at sampleRate, writing the events
// to out with sample offsets.
func NewClock(player *Player, out PlayerOutput, sampleRate int) *Clock {
	return &Clock{player: player, out: out, sampleRate: sampleRate}
}

// ProcessAudio advances the player by the duration of buf.
func (c *Clock) ProcessAudio(buf jacker.AudioBuffer) error {
	buf.Fill([2]float32{})
	c.Advance(len(buf))
	return nil
}

// Advance advances the player by nsamples samples.
func (c *Clock) Advance(nsamples int) {
	if nsamples <= 0 {
		return
	}
	c.adapter = sampleOutput{out: c.out, nsamples: nsamples}
	c.player.processMessages(&c.adapter)
	if c.player.State() != Playing {
		c.next = 0
		c.out.FinishBlock(nsamples)
		c.player.sendStatus()
		return
	}
	spf := jacker.SamplesPerFrame(c.sampleRate, c.player.BPM(), c.player.FramesPerBeat())
	nframes := 0
	if spf > 0 && c.next < float64(nsamples) {
		nframes = int(math.Ceil((float64(nsamples) - c.next) / spf))
	}
	c.adapter.first = c.next
	c.adapter.samplesPerFrame = spf
	c.player.render(nframes, &c.adapter)
	if c.player.State() == Playing {
		c.next += float64(nframes)*spf - float64(nsamples)
	} else {
		c.next = 0
	}
	c.out.FinishBlock(nsamples)
	c.player.sendStatus()
}

func (s *sampleOutput) WriteEvent(e OutputEvent) error {
	e.Offset = int(s.first + float64(e.Offset)*s.samplesPerFrame)
	e.Offset = min(max(e.Offset, 0), s.nsamples-1)
	return s.out.WriteEvent(e)
}

func (s *sampleOutput) FinishBlock(int) {}
