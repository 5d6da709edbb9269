package session

import (
	"time"

	"github.com/rsouth/fixgate/internal/fix"
	"github.com/rsouth/fixgate/internal/fix/codec"
)

// event is anything the session's single ordered work queue can carry:
// decoded inbound messages, outbound submissions, timer ticks and transport
// lifecycle notices. The run loop processes events strictly in enqueue order,
// so the machine sees a totally ordered stream.
type event interface{ isEvent() }

type evInbound struct{ msg *fix.Message }

type evDecodeError struct{ err *codec.DecodeError }

type evConnected struct{ transport Transport }

type evDisconnected struct{ err error }

type evTick struct{ now time.Time }

type evSubmit struct {
	msg    *fix.Message
	result chan error
}

type evLogout struct{ reason string }

type evStop struct{}

func (evInbound) isEvent()      {}
func (evDecodeError) isEvent()  {}
func (evConnected) isEvent()    {}
func (evDisconnected) isEvent() {}
func (evTick) isEvent()         {}
func (evSubmit) isEvent()       {}
func (evLogout) isEvent()       {}
func (evStop) isEvent()         {}
