package tuya

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"local-tuya/codec"
	"local-tuya/events"
)

// Receiver decodes inbound frames and emits a ResponseReceived per message.
// Incomplete frames stay buffered until more data arrives; corrupt frames,
// including unknown command codes, are dropped with a warning and the buffer
// is reset.
type Receiver struct {
	log      *log.Entry
	codec    *codec.Codec
	notifier *events.Notifier
	buf      []byte
}

func NewReceiver(name string, c *codec.Codec, notifier *events.Notifier) *Receiver {
	r := &Receiver{
		log:      log.WithField("device", name),
		codec:    c,
		notifier: notifier,
	}
	events.Register(notifier, r.receive)
	events.Register(notifier, func(ConnectionClosed) error {
		r.buf = nil
		return nil
	})
	return r
}

// receive runs on the transport's read goroutine, so buffer access needs no
// locking.
func (r *Receiver) receive(e DataReceived) error {
	r.buf = append(r.buf, e.Data...)
	for len(r.buf) > 0 {
		seq, resp, cmdKind, rest, err := r.codec.Unpack(r.buf)
		if err != nil {
			var decodeErr *codec.DecodeError
			if errors.As(err, &decodeErr) && decodeErr.Incomplete() {
				return nil // wait for more data
			}
			r.log.WithError(err).Warn("dropping undecodable frame")
			r.buf = nil
			return nil
		}
		r.buf = rest
		r.log.Debugf("received message %d %s", seq, resp.Kind)
		r.notifier.Emit(ResponseReceived{
			Seq:         seq,
			Response:    resp,
			CommandKind: cmdKind,
		})
	}
	return nil
}
