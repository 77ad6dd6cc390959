package event

// Event is a single sensor-reported pixel change. X and Y are the pixel
// coordinate and T is the sensor timestamp in microseconds. Timestamps are
// non-decreasing within a chunk and across chunks from the same device.
type Event struct {
	X uint16
	Y uint16
	T int64
}

// Chunk is an ordered batch of events delivered by one driver callback.
type Chunk []Event

// CopyChunk copies a driver-owned event slice into a Chunk owned by the
// pipeline. Driver callback memory is only valid for the duration of the
// callback so it must never be retained directly.
func CopyChunk(events []Event) Chunk {
	if len(events) == 0 {
		return nil
	}
	chunk := make(Chunk, len(events))
	copy(chunk, events)
	return chunk
}
