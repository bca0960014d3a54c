/*
Package tracker contains the real-time core of the jacker sequencer: the Model
edited by the user, the Player scheduling the song in the audio callback, and
the Broker connecting them.

The Model is owned by the control goroutine. It holds the song, the undo
history and the last known state of the player. Edits of the arrangement
never touch data the player can see; instead, the model sends the player a
Snapshot, a copy-on-write clone of the song, which the player swaps in at the
start of its next block. Transport commands, like model.Play() or
model.Seek(frame), are sent as messages.

The Player is owned by the audio goroutine. Once per block it applies all the
pending messages, walks the placements of the snapshot that intersect the
block, splitting the block at the loop end if needed, and writes the resolved
events to a PlayerOutput in non-decreasing time order. The player keeps the
table of sounding notes so that stopping and seeking never leave notes
hanging. A Clock drives the player from an audio callback, converting between
samples and frames.

The Broker has one lock-free ring buffer in each direction, so neither side
ever waits for the other.
*/
package tracker
