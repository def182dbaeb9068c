package lighting

// Buffer collects the lights uploaded with each draw.
type Buffer struct {
	lights []Light
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{lights: make([]Light, 0, MaxLights)}
}

// Clear removes all lights.
func (b *Buffer) Clear() {
	b.lights = b.lights[:0]
}

// Add appends a light. Returns false if the buffer is full.
func (b *Buffer) Add(l Light) bool {
	if len(b.lights) >= MaxLights {
		return false
	}
	b.lights = append(b.lights, l)
	return true
}

// Set replaces all lights, truncating to MaxLights.
func (b *Buffer) Set(lights []Light) {
	b.Clear()
	b.lights = append(b.lights, lights[:min(len(lights), MaxLights)]...)
}

// Lights returns the current lights.
func (b *Buffer) Lights() []Light { return b.lights }

// Count returns the number of lights.
func (b *Buffer) Count() int { return len(b.lights) }

// AppendRecords appends MaxLights records to dst. Unused entries are zero.
func (b *Buffer) AppendRecords(dst []byte) []byte {
	for _, l := range b.lights {
		dst = l.AppendRecord(dst)
	}
	for range MaxLights - len(b.lights) {
		dst = append(dst, make([]byte, RecordSize)...)
	}
	return dst
}
