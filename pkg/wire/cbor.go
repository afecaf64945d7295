package wire

import "github.com/fxamacker/cbor/v2"

// CBORSerializer implements Serializer over github.com/fxamacker/cbor/v2.
// CBOR's compact array/byte-string encoding is also why the reliable
// endpoint caps a packet at 15 messages (spec §4.4 step 3): a CBOR array
// header for 0-23 items fits in a single byte, so capping well under that
// keeps the "array framing takes 1 byte" property the frame builder relies
// on for its size accounting.
type CBORSerializer struct{}

func (CBORSerializer) Marshal(values []any) (Message, error) {
	b, err := cbor.Marshal(values)
	if err != nil {
		return nil, err
	}
	return Message(b), nil
}

func (CBORSerializer) Unmarshal(m Message) ([]any, error) {
	var values []any
	if err := cbor.Unmarshal(m, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// CBORPacketCodec implements PacketCodec as a single CBOR array of byte
// strings, one per Message.
type CBORPacketCodec struct{}

func (CBORPacketCodec) EncodePacket(msgs []Message) ([]byte, error) {
	raw := make([][]byte, len(msgs))
	for i, m := range msgs {
		raw[i] = m
	}
	return cbor.Marshal(raw)
}

func (CBORPacketCodec) DecodePacket(data []byte) ([]Message, error) {
	var raw [][]byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	msgs := make([]Message, len(raw))
	for i, b := range raw {
		msgs[i] = Message(b)
	}
	return msgs, nil
}
