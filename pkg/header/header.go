// Package header packs and unpacks the 32-bit little-endian frame header
// used by the reliable endpoint, including the secondary-header piggyback
// used to acknowledge a paired endpoint without a frame of its own.
//
// Bit layout (little-endian bit indices, bit 0 is the least-significant bit
// of the wire uint32):
//
//	0-7   SACK   bitmap over seq in {ack+1 .. ack+8}
//	8-11  ACK    cumulative ack: next expected receive seq minus 1
//	12    DATA   1 if this frame carries a payload packet
//	13    SECOND 1 if a secondary header is packed into bits 18-29
//	14-17 SEQ    this packet's seq, valid only if DATA=1
//	18-25 SACK2  SACK of the secondary header, valid if SECOND=1
//	26-29 ACK2   ACK of the secondary header
//	30-31 reserved
package header

import "encoding/binary"

const (
	offSACK   = 0
	widSACK   = 8
	offACK    = 8
	widACK    = 4
	offDATA   = 12
	widDATA   = 1
	offSECOND = 13
	widSECOND = 1
	offSEQ    = 14
	widSEQ    = 4
	offSACK2  = 18
	widSACK2  = 8
	offACK2   = 26
	widACK2   = 4
)

// ExtractBits returns the width-bit field of x starting at offset.
func ExtractBits(x uint32, offset, width uint) uint32 {
	mask := uint32(1)<<width - 1
	return (x >> offset) & mask
}

// ReplaceBits returns x with its width-bit field at offset replaced by v
// (masked to width bits); all other bits of x are unchanged.
func ReplaceBits(x uint32, offset, width uint, v uint32) uint32 {
	mask := uint32(1)<<width - 1
	x &^= mask << offset
	x |= (v & mask) << offset
	return x
}

// Header is a decoded primary (or secondary-as-primary) header.
type Header struct {
	Ack       uint8
	Sack      uint8
	Seq       uint8
	HasSeq    bool
	HasSecond bool
}

// Encode packs ack, sack and an optional seq into a primary header word.
// Pass hasSeq=false when the frame carries no payload packet.
func Encode(ack, sack uint8, seq uint8, hasSeq bool) uint32 {
	var h uint32
	h = ReplaceBits(h, offSACK, widSACK, uint32(sack))
	h = ReplaceBits(h, offACK, widACK, uint32(ack))
	if hasSeq {
		h = ReplaceBits(h, offDATA, widDATA, 1)
		h = ReplaceBits(h, offSEQ, widSEQ, uint32(seq))
	}
	return h
}

// Decode unpacks a primary header word.
func Decode(h uint32) Header {
	out := Header{
		Ack:  uint8(ExtractBits(h, offACK, widACK)),
		Sack: uint8(ExtractBits(h, offSACK, widSACK)),
	}
	if ExtractBits(h, offDATA, widDATA) == 1 {
		out.HasSeq = true
		out.Seq = uint8(ExtractBits(h, offSEQ, widSEQ))
	}
	if ExtractBits(h, offSECOND, widSECOND) == 1 {
		out.HasSecond = true
	}
	return out
}

// Merge packs a secondary header's ack/sack into bits 18-29 of primary and
// sets SECOND=1. The secondary's own DATA/SEQ bits are never carried: the
// piggyback only ever conveys an ack/sack pair (see dispatch's piggyback
// wiring), never a second payload packet.
func Merge(primary uint32, secondary uint32) uint32 {
	sec := Decode(secondary)
	primary = ReplaceBits(primary, offSECOND, widSECOND, 1)
	primary = ReplaceBits(primary, offSACK2, widSACK2, uint32(sec.Sack))
	primary = ReplaceBits(primary, offACK2, widACK2, uint32(sec.Ack))
	return primary
}

// Split reverses Merge: it returns the primary header with SECOND cleared,
// and, if SECOND was set, a reconstructed secondary header word carrying
// only the piggybacked ack/sack (DATA=0).
func Split(h uint32) (primary uint32, secondary uint32, hasSecond bool) {
	hasSecond = ExtractBits(h, offSECOND, widSECOND) == 1
	primary = ReplaceBits(h, offSECOND, widSECOND, 0)
	if !hasSecond {
		return primary, 0, false
	}
	sack2 := uint8(ExtractBits(h, offSACK2, widSACK2))
	ack2 := uint8(ExtractBits(h, offACK2, widACK2))
	primary = ReplaceBits(primary, offSACK2, widSACK2+widACK2, 0)
	secondary = Encode(ack2, sack2, 0, false)
	return primary, secondary, true
}

// PackFrame concatenates a header word and an optional payload into the
// byte string a carrier actually transports: 4 bytes little-endian header
// followed by payload, if any.
func PackFrame(h uint32, payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(out, h)
	copy(out[4:], payload)
	return out
}

// UnpackFrame reverses PackFrame. ok is false if frame is shorter than a
// header.
func UnpackFrame(frame []byte) (h uint32, payload []byte, ok bool) {
	if len(frame) < 4 {
		return 0, nil, false
	}
	h = binary.LittleEndian.Uint32(frame)
	if len(frame) > 4 {
		payload = frame[4:]
	}
	return h, payload, true
}
