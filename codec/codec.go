// Package codec packs commands into Tuya v3.3 wire frames and unpacks frames
// into responses.
//
// Frame format (all integers big-endian):
//
//	0        4        8        12       16
//	┌────────┬────────┬────────┬────────┬──────────────┬────────┬────────┐
//	│ prefix │  seq   │  cmd   │ length │   payload    │ crc32  │ suffix │
//	│55AA    │ uint32 │ uint32 │ uint32 │ length-8 B   │ uint32 │ AA55   │
//	└────────┴────────┴────────┴────────┴──────────────┴────────┴────────┘
//
// length counts everything after the header up to and including the suffix.
// Outbound payloads are the AES-ECB encrypted compact JSON serialization of
// the command body; update commands are prefixed with a 15-byte "3.3" version
// header. Inbound payloads start with a 4-byte return code.
package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"hash/crc32"

	"github.com/pkg/errors"

	"local-tuya/message"
)

const (
	prefix uint32 = 0x000055AA
	suffix uint32 = 0x0000AA55

	headerSize = 16
	// Return code + CRC + suffix: the minimum declared payload length of a
	// well-formed inbound frame.
	returnCodeSize = 4
	trailerSize    = 8

	// Version is the only protocol version this codec speaks.
	Version = "3.3"
	// KeySize is the AES key size used by v3.3 devices.
	KeySize = 16
)

// versionHeader prefixes update command payloads: "3.3" then 12 zero bytes.
var versionHeader = append([]byte(Version), make([]byte, 12)...)

// Suffix returns the 4-byte frame terminator, used by the transport to split
// the inbound byte stream into frames.
func Suffix() []byte {
	return []byte{0x00, 0x00, 0xAA, 0x55}
}

// Codec is a pure function of (key, bytes): safe for concurrent use.
type Codec struct {
	cipher *aesCipher
}

// New builds a v3.3 codec for the given 16-byte device key.
func New(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, errors.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	cipher, err := newAESCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "creating cipher")
	}
	return &Codec{cipher: cipher}, nil
}

// Pack serializes a command into a complete wire frame.
func (c *Codec) Pack(seq uint32, cmd message.Command) ([]byte, error) {
	switch cmd.Kind() {
	case message.KindUpdate, message.KindHeartbeat, message.KindState:
	default:
		return nil, &EncodeError{Detail: "unknown command " + cmd.Kind().String()}
	}
	payload := cmd.Payload()
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &EncodeError{Detail: "serializing payload", Err: err}
	}
	encrypted := c.cipher.encrypt(body)

	var full []byte
	if cmd.Kind() == message.KindUpdate {
		full = append(append([]byte{}, versionHeader...), encrypted...)
	} else {
		full = encrypted
	}

	frame := make([]byte, headerSize, headerSize+len(full)+trailerSize)
	binary.BigEndian.PutUint32(frame[0:4], prefix)
	binary.BigEndian.PutUint32(frame[4:8], seq)
	binary.BigEndian.PutUint32(frame[8:12], uint32(cmd.Kind()))
	binary.BigEndian.PutUint32(frame[12:16], uint32(len(full)+trailerSize))
	frame = append(frame, full...)

	var trailer [8]byte
	binary.BigEndian.PutUint32(trailer[0:4], crc32.ChecksumIEEE(frame))
	binary.BigEndian.PutUint32(trailer[4:8], suffix)
	return append(frame, trailer[:]...), nil
}

// Unpack decodes a single frame from data and returns the sequence number,
// the response, the kind of command it answers (KindNone for unsolicited
// status pushes) and the bytes remaining after the frame.
//
// The inbound CRC is ignored: devices already authenticate payloads through
// encryption and some firmwares compute the checksum incorrectly.
func (c *Codec) Unpack(data []byte) (uint32, *message.Response, message.Kind, []byte, error) {
	if len(data) < headerSize {
		return 0, nil, message.KindNone, data, decodeErr("short", "not enough header data: %d bytes", len(data))
	}
	if got := binary.BigEndian.Uint32(data[0:4]); got != prefix {
		return 0, nil, message.KindNone, data, decodeErr("prefix", "incorrect prefix: %#08x", got)
	}
	seq := binary.BigEndian.Uint32(data[4:8])
	code := message.Kind(binary.BigEndian.Uint32(data[8:12]))
	length := int(binary.BigEndian.Uint32(data[12:16]))

	switch code {
	case message.KindUpdate, message.KindStatus, message.KindHeartbeat, message.KindState:
	default:
		return 0, nil, message.KindNone, data, decodeErr("unknown", "unknown response type %#08x", uint32(code))
	}
	if length < returnCodeSize+trailerSize {
		return 0, nil, message.KindNone, data, decodeErr("length", "payload not long enough: %d bytes", length)
	}
	if len(data) < headerSize+length {
		return 0, nil, message.KindNone, data, decodeErr("short", "not enough payload data: %d of %d bytes", len(data)-headerSize, length)
	}
	payload := data[headerSize : headerSize+length]
	rest := data[headerSize+length:]

	if got := binary.BigEndian.Uint32(payload[len(payload)-4:]); got != suffix {
		return 0, nil, message.KindNone, rest, decodeErr("suffix", "incorrect suffix: %#08x", got)
	}
	returnCode := binary.BigEndian.Uint32(payload[:returnCodeSize])
	body := payload[returnCodeSize : len(payload)-trailerSize]
	if bytes.HasPrefix(body, []byte(Version)) {
		if len(body) < len(versionHeader) {
			return 0, nil, message.KindNone, rest, decodeErr("length", "version header truncated: %d bytes", len(body))
		}
		body = body[len(versionHeader):]
	}

	resp := &message.Response{Kind: code}
	if returnCode != 0 {
		resp.Err = &message.ResponseError{Body: string(body)}
		return seq, resp, message.CommandKind(code), rest, nil
	}
	if len(body) > 0 {
		// Payload-level failures keep the valid frame envelope: the response
		// carries the decode error so a matching pending command sees it.
		decrypted, err := c.cipher.decrypt(body)
		if err != nil {
			resp.Err = &DecodeError{Reason: "decrypt", Err: err}
			return seq, resp, message.CommandKind(code), rest, nil
		}
		var parsed map[string]json.RawMessage
		if err := json.Unmarshal(decrypted, &parsed); err != nil {
			resp.Err = &DecodeError{Reason: "json", Detail: string(decrypted), Err: err}
			return seq, resp, message.CommandKind(code), rest, nil
		}
		if code == message.KindStatus || code == message.KindState {
			resp.Values, resp.Err = parseValues(parsed)
		}
	} else if code == message.KindStatus || code == message.KindState {
		resp.Err = decodeErr("no dps", "no dps in response")
	}
	return seq, resp, message.CommandKind(code), rest, nil
}

func parseValues(payload map[string]json.RawMessage) (message.Values, error) {
	raw, ok := payload["dps"]
	if !ok {
		return nil, decodeErr("no dps", "no dps in response")
	}
	var values message.Values
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return nil, decodeErr("no dps", "dps is not an object")
	}
	return values, nil
}
