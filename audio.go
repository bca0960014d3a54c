package jacker

type (
	// AudioBuffer is a buffer of stereo audio samples of variable length,
	// one [2]float32 per sample frame.
	AudioBuffer [][2]float32

	// AudioProcessor is called from the audio callback goroutine once per
	// block of audio and must fill buf completely without blocking. The
	// sequencer uses the audio callback as its clock: the length of buf
	// tells how much time has passed.
	AudioProcessor interface {
		ProcessAudio(buf AudioBuffer) error
	}

	// AudioContext can start pulling audio from a processor on its own
	// goroutine.
	AudioContext interface {
		Play(p AudioProcessor) (CloserWaiter, error)
		Close() error
	}

	// CloserWaiter is the handle of a running audio stream.
	CloserWaiter interface {
		Close() error
		Wait()
	}
)

// Fill sets every sample of the buffer to value.
func (b AudioBuffer) Fill(value [2]float32) {
	for i := range b {
		b[i] = value
	}
}
