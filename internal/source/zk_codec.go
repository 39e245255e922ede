// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

/*
zk_codec.go - attendance terminal wire format

The terminal speaks a framed binary protocol over TCP: a 4-byte magic and a
little-endian payload length wrap each packet, and the payload starts with
an 8-byte header of command, checksum, session id, and reply id. Attendance
log rows are fixed 40-byte records with a packed timestamp.
*/

package source

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Protocol command codes.
const (
	cmdAttLogRead  uint16 = 13
	cmdConnect     uint16 = 1000
	cmdExit        uint16 = 1001
	cmdAuth        uint16 = 1102
	cmdPrepareData uint16 = 1500
	cmdData        uint16 = 1501
	cmdFreeData    uint16 = 1502
	cmdAckOK       uint16 = 2000
	cmdAckError    uint16 = 2001
	cmdAckData     uint16 = 2002
	cmdAckUnauth   uint16 = 2005
)

const (
	packetHeaderLen = 8
	attRecordSize   = 40
	commKeyTicks    = 50
	maxDevicePacket = 4 << 20
)

// frameMagic opens every TCP frame.
var frameMagic = []byte{0x50, 0x50, 0x82, 0x7d}

// packet is one protocol message.
type packet struct {
	command uint16
	session uint16
	reply   uint16
	data    []byte
}

// encodePacket renders a packet as a complete TCP frame, checksum included.
func encodePacket(p packet) []byte {
	payload := make([]byte, packetHeaderLen+len(p.data))
	binary.LittleEndian.PutUint16(payload[0:2], p.command)
	binary.LittleEndian.PutUint16(payload[4:6], p.session)
	binary.LittleEndian.PutUint16(payload[6:8], p.reply)
	copy(payload[packetHeaderLen:], p.data)
	binary.LittleEndian.PutUint16(payload[2:4], packetChecksum(payload))

	frame := make([]byte, 0, len(frameMagic)+4+len(payload))
	frame = append(frame, frameMagic...)
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(payload)))
	frame = append(frame, size[:]...)
	return append(frame, payload...)
}

// decodePayload parses a frame payload into a packet. Inbound checksums are
// not validated; field devices routinely send bad ones.
func decodePayload(payload []byte) (packet, error) {
	if len(payload) < packetHeaderLen {
		return packet{}, fmt.Errorf("%w: packet truncated at %d bytes", ErrSourceMalformed, len(payload))
	}
	p := packet{
		command: binary.LittleEndian.Uint16(payload[0:2]),
		session: binary.LittleEndian.Uint16(payload[4:6]),
		reply:   binary.LittleEndian.Uint16(payload[6:8]),
	}
	if len(payload) > packetHeaderLen {
		p.data = append([]byte(nil), payload[packetHeaderLen:]...)
	}
	return p, nil
}

// packetChecksum is the protocol's ones' complement sum of 16-bit
// little-endian words, with a trailing odd byte added as-is. It is computed
// over the payload with the checksum field zeroed.
func packetChecksum(payload []byte) uint16 {
	var sum uint32
	i := 0
	for ; i+1 < len(payload); i += 2 {
		sum += uint32(binary.LittleEndian.Uint16(payload[i : i+2]))
	}
	if i < len(payload) {
		sum += uint32(payload[i])
	}
	for sum > 0xffff {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// makeCommKey derives the 4-byte authentication blob from the numeric comm
// key and the session id: the key's 32 bits are reversed, the session id
// added, the bytes XORed with "ZKSO", the 16-bit halves swapped, and the
// result XORed with the ticks byte (which also lands literally at index 2).
func makeCommKey(key int, sessionID uint16) [4]byte {
	var reversed uint32
	k := uint32(key)
	for i := 0; i < 32; i++ {
		reversed <<= 1
		if k&(1<<uint(i)) != 0 {
			reversed |= 1
		}
	}
	reversed += uint32(sessionID)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], reversed)
	buf[0] ^= 'Z'
	buf[1] ^= 'K'
	buf[2] ^= 'S'
	buf[3] ^= 'O'

	swapped := [4]byte{buf[2], buf[3], buf[0], buf[1]}
	return [4]byte{
		swapped[0] ^ commKeyTicks,
		swapped[1] ^ commKeyTicks,
		commKeyTicks,
		swapped[3] ^ commKeyTicks,
	}
}

// attRecord is one decoded attendance log row.
type attRecord struct {
	uid       uint16
	userID    string
	status    byte
	timestamp time.Time
	punch     byte
}

// decodeAttendanceLog splits a raw log payload into records: uid, a
// NUL-padded 24-byte user id, a status byte, the packed timestamp, a punch
// byte, and 8 reserved bytes. Some firmwares prefix the payload with a u32
// total size; a remainder of 4 modulo the record size strips it. A
// truncated trailing fragment is ignored.
func decodeAttendanceLog(data []byte, loc *time.Location) []attRecord {
	if len(data)%attRecordSize == 4 {
		data = data[4:]
	}

	records := make([]attRecord, 0, len(data)/attRecordSize)
	for len(data) >= attRecordSize {
		row := data[:attRecordSize]
		data = data[attRecordSize:]
		records = append(records, attRecord{
			uid:       binary.LittleEndian.Uint16(row[0:2]),
			userID:    decodeDeviceString(row[2:26]),
			status:    row[26],
			timestamp: decodePackedTime(binary.LittleEndian.Uint32(row[27:31]), loc),
			punch:     row[31],
		})
	}
	return records
}

// decodeDeviceString trims the NUL padding from a fixed-width field.
func decodeDeviceString(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

// decodePackedTime unpacks the device's compact timestamp: successive
// divmod by 60, 60, 24, 31, and 12 yields second, minute, hour, day-1,
// month-1, and years since 2000.
func decodePackedTime(t uint32, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	sec := int(t % 60)
	t /= 60
	minute := int(t % 60)
	t /= 60
	hour := int(t % 24)
	t /= 24
	day := int(t%31) + 1
	t /= 31
	month := time.Month(int(t%12) + 1)
	t /= 12
	year := int(t) + 2000
	return time.Date(year, month, day, hour, minute, sec, 0, loc)
}
