package device

import "log/slog"

// Mix renders one tick into out, an interleaved buffer in the device format.
// Sinks call it from their audio thread. The registry stays locked for the
// whole tick, so buffers cannot be deregistered while they are being read.
func (d *Device) Mix(out []float32) {
	clear(out)

	d.mu.Lock()
	defer d.mu.Unlock()

	channels := int(d.format.Channels)
	if channels == 0 {
		return
	}
	frames := len(out) / channels
	out = out[:frames*channels]

	for _, b := range d.buffers {
		if b.state != StatePlaying {
			continue
		}
		d.mixBuffer(b, out, frames, channels)
	}

	for _, p := range d.mixed {
		p.fn(out, frames)
	}

	volume := d.masterVolume
	for i, v := range out {
		v *= volume
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = v
	}
}

// mixBuffer accumulates up to frames frames of b into out, advancing its
// cursor. A one-shot buffer that reaches its end finishes and rewinds.
func (d *Device) mixBuffer(b *buffer, out []float32, frames, channels int) {
	if len(b.data) != b.frames*channels {
		if !b.flagged {
			b.flagged = true
			slog.Warn("skipping inconsistent stream buffer",
				"buffer", b.stream.Buffer,
				"samples", len(b.data),
				"frames", b.frames,
				"channels", channels)
		}
		return
	}

	left, right := panGains(b.volume, b.pan)
	if channels == 1 {
		left = b.volume
	}

	written := 0
	for written < frames && b.state == StatePlaying {
		n := min(frames-written, b.frames-b.cursor)
		if n > 0 {
			src := b.data[b.cursor*channels : (b.cursor+n)*channels]
			if len(b.processors) > 0 {
				tmp := d.scratchFor(n * channels)
				copy(tmp, src)
				for _, p := range b.processors {
					p.fn(tmp, n)
				}
				src = tmp
			}
			accumulate(out[written*channels:(written+n)*channels], src, channels, left, right)
			written += n
			b.cursor += n
		}

		if b.cursor >= b.frames {
			if b.looping && b.frames > 0 {
				b.cursor = 0
				continue
			}
			b.state = StateFinished
			b.cursor = 0
		}
	}
}

// scratchFor returns a scratch slice of n samples. It only allocates when a
// sink asks for a larger tick than it negotiated.
func (d *Device) scratchFor(n int) []float32 {
	if cap(d.scratch) < n {
		d.scratch = make([]float32, n)
	}
	return d.scratch[:n]
}

// panGains applies a cubic pan law: 0.5 gives each channel 0.6875 of the volume
func panGains(volume, pan float32) (float32, float32) {
	l := pan
	r := 1 - pan
	return volume * 0.5 * l * (3 - l*l), volume * 0.5 * r * (3 - r*r)
}

func accumulate(dst, src []float32, channels int, left, right float32) {
	if channels == 1 {
		for i, s := range src {
			dst[i] += s * left
		}
		return
	}
	for i := 0; i+1 < len(src); i += 2 {
		dst[i] += src[i] * left
		dst[i+1] += src[i+1] * right
	}
}
