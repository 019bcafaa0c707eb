package ptpip

import "time"

// keepAliveTicker wraps a time.Ticker behind the narrow interface the
// session executor needs, mirroring the teacher's heartbeat.go shape
// (ticker-with-Stop) without its own goroutine or done-channel: the
// executor's select loop is itself the tick consumer, so a dropped tick
// while an operation is in flight is exactly the "skip, don't queue"
// behaviour spec.md §4.3 Keep-alive requires.
type keepAliveTicker struct {
	t *time.Ticker
}

func newKeepAliveTicker() *keepAliveTicker {
	return &keepAliveTicker{t: time.NewTicker(KeepAliveInterval)}
}

func (k *keepAliveTicker) C() <-chan time.Time {
	return k.t.C
}

func (k *keepAliveTicker) Stop() {
	k.t.Stop()
}
