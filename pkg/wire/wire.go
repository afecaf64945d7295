// Package wire defines the Message/Packet data model the protocol core
// operates on and the collaborator contracts (§6 of the spec this module
// implements) it is built against: a value serializer and a packet codec.
// The protocol core never inspects a Message's contents, only its Size.
package wire

// Message is one opaque application event, already reduced to its
// serialized byte representation. The protocol core's only use of a
// Message is measuring its Size and carrying its bytes inside a Packet.
type Message []byte

// Size returns the measured serialized size in bytes.
func (m Message) Size() int { return len(m) }

// Serializer turns an ordered sequence of application values into one
// Message and back. It is the collaborator named by contract in spec §1
// ("the binary object serializer used for messages"); relaynet ships one
// concrete implementation (CBORSerializer) but never requires it — any
// Serializer implementation is a drop-in.
type Serializer interface {
	Marshal(values []any) (Message, error)
	Unmarshal(m Message) ([]any, error)
}

// PacketCodec batches a slice of Messages into one packet payload and back.
// Reliable and unreliable packets share this codec; the reliable endpoint
// additionally prefixes a sequence number onto the frame header, never into
// this payload.
type PacketCodec interface {
	EncodePacket(msgs []Message) ([]byte, error)
	DecodePacket(data []byte) ([]Message, error)
}
