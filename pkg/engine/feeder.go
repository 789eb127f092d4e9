// ABOUTME: Device feeder filling device buffers from a session's mixer
// ABOUTME: Converts mixed float32 samples into the device encoding, silence on underrun
package engine

import (
	"sync/atomic"

	"github.com/Resonate-Protocol/playout/pkg/audio"
	"github.com/Resonate-Protocol/playout/pkg/audio/mix"
	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	"github.com/prometheus/client_golang/prometheus"
)

// feeder is the FillFunc side of a session. Its fill method runs on the
// driver goroutine only.
//
// The event loop references the feeder for as long as the device stream
// exists, so the feeder must never point at its session except through
// claim and owner: owner keeps the session alive while sources are mixing,
// and claim hands a session reference from Session.Add to the driver.
type feeder struct {
	mixer *mix.Mixer

	claim atomic.Pointer[Session]
	owner *Session

	underruns atomic.Uint64
	underrunC prometheus.Counter
}

func newFeeder(mixer *mix.Mixer, underrunC prometheus.Counter) *feeder {
	return &feeder{mixer: mixer, underrunC: underrunC}
}

// fill writes one mixed sample per slot of buf
func (f *feeder) fill(buf output.Buffer) {
	if s := f.claim.Swap(nil); s != nil {
		f.owner = s
	}

	var under int
	switch buf.Encoding {
	case audio.EncodingU16:
		for i := range buf.U16 {
			v, ok := f.mixer.Next()
			if !ok {
				buf.U16[i] = audio.SilenceU16
				under++
				continue
			}
			buf.U16[i] = audio.F32ToU16(v)
		}
	case audio.EncodingI16:
		for i := range buf.I16 {
			v, ok := f.mixer.Next()
			if !ok {
				buf.I16[i] = 0
				under++
				continue
			}
			buf.I16[i] = audio.F32ToI16(v)
		}
	case audio.EncodingF32:
		for i := range buf.F32 {
			v, ok := f.mixer.Next()
			if !ok {
				buf.F32[i] = 0
				under++
				continue
			}
			buf.F32[i] = v
		}
	}

	if under > 0 {
		f.underruns.Add(uint64(under))
		f.underrunC.Add(float64(under))
	}

	if f.mixer.Idle() {
		f.owner = nil
	}
}
