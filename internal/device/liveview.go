package device

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/paulbellamy/ratecounter"

	"ptpipcam/internal/ptpip"
)

// liveViewHeaderSize is the fixed 16-byte framing header preceding the
// JPEG sub-region in the live-view object payload (spec.md §3).
const liveViewHeaderSize = 16

// ExtractLiveViewFrame implements spec.md §3 "Live-view frame" gating:
// ok is false whenever the payload is too short, the announced region
// overruns the payload, the region is empty, or it doesn't start with a
// JPEG SOI marker. Invalid frames are never reported as an error.
func ExtractLiveViewFrame(payload []byte) (frame []byte, ok bool) {
	if len(payload) <= liveViewHeaderSize {
		return nil, false
	}
	offset := binary.LittleEndian.Uint32(payload[0:4])
	size := binary.LittleEndian.Uint32(payload[4:8])
	if size == 0 {
		return nil, false
	}
	total := uint64(len(payload))
	if uint64(offset)+uint64(size) > total {
		return nil, false
	}
	region := payload[offset : offset+size]
	if len(region) < 2 || region[0] != 0xFF || region[1] != 0xD8 {
		return nil, false
	}
	return region, true
}

// LiveView starts a polling loop targeting ~30 frames per second
// (spec.md §5) and streams frames over the returned channel in arrival
// order. The loop exits and closes the channel when ctx is cancelled.
func (d *Device) LiveView(ctx context.Context) <-chan []byte {
	frames := make(chan []byte)
	go d.runLiveView(ctx, frames)
	return frames
}

// LiveViewFPS reports the frame rate over the trailing second, as sampled
// by the LiveView loop each time it delivers a frame. It reads zero before
// LiveView has delivered its first frame; it is not updated while no
// frames arrive and is not reset when the loop exits, so it keeps the last
// sampled value.
func (d *Device) LiveViewFPS() int64 {
	return d.liveViewFPS.Load()
}

func (d *Device) runLiveView(ctx context.Context, frames chan<- []byte) {
	defer close(frames)

	errorBackoff := backoff.NewConstantBackOff(ptpip.LiveViewErrorBackoff)
	rate := ratecounter.NewRateCounter(1 * time.Second)

	for {
		if ctx.Err() != nil {
			return
		}
		frame, ok, err := d.GetLiveFrame(ctx)
		if err != nil {
			deviceLog.WithError(err).Debug("live-view fetch failed, backing off")
			if !sleepCtx(ctx, errorBackoff.NextBackOff()) {
				return
			}
			continue
		}
		if !ok {
			if !sleepCtx(ctx, ptpip.LiveViewFrameInterval) {
				return
			}
			continue
		}

		rate.Incr(1)
		d.liveViewFPS.Store(rate.Rate())
		select {
		case frames <- frame:
		case <-ctx.Done():
			return
		}
		if !sleepCtx(ctx, ptpip.LiveViewFrameInterval) {
			return
		}
	}
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
