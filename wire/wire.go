// Package wire implements the binary request/response protocol described in
// spec.md section 4.3: a one-byte type tag followed by the message body,
// with big-endian integers, length-prefixed strings, one-byte booleans.
//
// Every message is modeled as a tagged union over the Message interface;
// Encode/Decode are free functions rather than virtual methods, since a Go
// sum type needs no inheritance to get a single discriminant byte.
package wire

import (
	"encoding/binary"
	"fmt"

	"chordring/ring"
)

// Tag is the one-byte wire discriminant.
type Tag byte

const (
	TagFindSuccessorRequest   Tag = 0x01
	TagFindSuccessorResponse  Tag = 0x02
	TagGetPredecessorRequest  Tag = 0x03
	TagGetPredecessorResponse Tag = 0x04
	TagNotify                 Tag = 0x05
	TagNotifyAck              Tag = 0x06
	TagPing                   Tag = 0x07
	TagPong                   Tag = 0x08

	TagGetRequest  Tag = 0x10
	TagGetResponse Tag = 0x11
	TagPutRequest  Tag = 0x12
	TagPutResponse Tag = 0x13

	TagTransferKeysRequest  Tag = 0x20
	TagTransferKeysResponse Tag = 0x21

	TagErrorResponse Tag = 0xFF
)

// Message is the sum type over every wire variant. Tag identifies which
// concrete struct below a decoded Message actually is.
type Message interface {
	Tag() Tag
	encodeBody(*encoder)
}

type encoder struct {
	buf []byte
}

func (e *encoder) writeByte(b byte) { e.buf = append(e.buf, b) }

func (e *encoder) writeBool(b bool) {
	if b {
		e.writeByte(1)
	} else {
		e.writeByte(0)
	}
}

func (e *encoder) writeU16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *encoder) writeU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *encoder) writeString(s string) {
	e.writeU32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) writeNodeInfo(n ring.NodeInfo) {
	e.writeU32(n.ID)
	e.writeString(n.Address.Host)
	e.writeU16(n.Address.Port)
}

// Encode serialises a Message to its wire form: tag byte followed by body.
func Encode(m Message) []byte {
	e := &encoder{buf: []byte{byte(m.Tag())}}
	m.encodeBody(e)
	return e.buf
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) remaining() int { return len(d.buf) - d.pos }

func (d *decoder) readByte() (byte, error) {
	if d.remaining() < 1 {
		return 0, fmt.Errorf("wire: truncated message reading byte")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (d *decoder) readU16() (uint16, error) {
	if d.remaining() < 2 {
		return 0, fmt.Errorf("wire: truncated message reading u16")
	}
	v := binary.BigEndian.Uint16(d.buf[d.pos : d.pos+2])
	d.pos += 2
	return v, nil
}

func (d *decoder) readU32() (uint32, error) {
	if d.remaining() < 4 {
		return 0, fmt.Errorf("wire: truncated message reading u32")
	}
	v := binary.BigEndian.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *decoder) readString() (string, error) {
	n, err := d.readU32()
	if err != nil {
		return "", err
	}
	if d.remaining() < int(n) {
		return "", fmt.Errorf("wire: truncated message reading string of length %d", n)
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *decoder) readNodeInfo() (ring.NodeInfo, error) {
	id, err := d.readU32()
	if err != nil {
		return ring.NodeInfo{}, err
	}
	host, err := d.readString()
	if err != nil {
		return ring.NodeInfo{}, err
	}
	port, err := d.readU16()
	if err != nil {
		return ring.NodeInfo{}, err
	}
	return ring.NodeInfo{ID: id, Address: ring.NodeAddress{Host: host, Port: port}}, nil
}

// Decode parses a full wire message (tag + body). An unknown tag or a
// truncated body is always an error — never a partial success.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("wire: empty message")
	}
	d := &decoder{buf: data, pos: 1}
	switch Tag(data[0]) {
	case TagFindSuccessorRequest:
		id, err := d.readU32()
		if err != nil {
			return nil, err
		}
		return &FindSuccessorRequest{ID: id}, nil
	case TagFindSuccessorResponse:
		return decodeFindSuccessorResponse(d)
	case TagGetPredecessorRequest:
		return &GetPredecessorRequest{}, nil
	case TagGetPredecessorResponse:
		return decodeGetPredecessorResponse(d)
	case TagNotify:
		n, err := d.readNodeInfo()
		if err != nil {
			return nil, err
		}
		return &Notify{Node: n}, nil
	case TagNotifyAck:
		accepted, err := d.readBool()
		if err != nil {
			return nil, err
		}
		return &NotifyAck{Accepted: accepted}, nil
	case TagPing:
		return &Ping{}, nil
	case TagPong:
		return &Pong{}, nil
	case TagGetRequest:
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &GetRequest{Key: key}, nil
	case TagGetResponse:
		return decodeGetResponse(d)
	case TagPutRequest:
		key, err := d.readString()
		if err != nil {
			return nil, err
		}
		value, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &PutRequest{Key: key, Value: value}, nil
	case TagPutResponse:
		success, err := d.readBool()
		if err != nil {
			return nil, err
		}
		return &PutResponse{Success: success}, nil
	case TagTransferKeysRequest:
		start, err := d.readU32()
		if err != nil {
			return nil, err
		}
		end, err := d.readU32()
		if err != nil {
			return nil, err
		}
		remove, err := d.readBool()
		if err != nil {
			return nil, err
		}
		return &TransferKeysRequest{Start: start, End: end, Remove: remove}, nil
	case TagTransferKeysResponse:
		return decodeTransferKeysResponse(d)
	case TagErrorResponse:
		msg, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &ErrorResponse{Message: msg}, nil
	default:
		return nil, fmt.Errorf("wire: unknown tag 0x%02x", data[0])
	}
}

func decodeFindSuccessorResponse(d *decoder) (Message, error) {
	found, err := d.readBool()
	if err != nil {
		return nil, err
	}
	m := &FindSuccessorResponse{Found: found}
	if found {
		n, err := d.readNodeInfo()
		if err != nil {
			return nil, err
		}
		m.Successor = n
	}
	return m, nil
}

func decodeGetPredecessorResponse(d *decoder) (Message, error) {
	has, err := d.readBool()
	if err != nil {
		return nil, err
	}
	m := &GetPredecessorResponse{Has: has}
	if has {
		n, err := d.readNodeInfo()
		if err != nil {
			return nil, err
		}
		m.Predecessor = n
	}
	return m, nil
}

func decodeGetResponse(d *decoder) (Message, error) {
	found, err := d.readBool()
	if err != nil {
		return nil, err
	}
	m := &GetResponse{Found: found}
	if found {
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		m.Value = v
	}
	return m, nil
}

func decodeTransferKeysResponse(d *decoder) (Message, error) {
	count, err := d.readU32()
	if err != nil {
		return nil, err
	}
	m := &TransferKeysResponse{Items: make([]KV, 0, count)}
	for i := uint32(0); i < count; i++ {
		k, err := d.readString()
		if err != nil {
			return nil, err
		}
		v, err := d.readString()
		if err != nil {
			return nil, err
		}
		m.Items = append(m.Items, KV{Key: k, Value: v})
	}
	return m, nil
}
