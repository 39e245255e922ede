// Punchsync - Biometric Attendance Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/punchsync

package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tomtom215/punchsync/internal/config"
	"github.com/tomtom215/punchsync/internal/logging"
	"github.com/tomtom215/punchsync/internal/metrics"
	"github.com/tomtom215/punchsync/internal/models"
)

// DeviceClient reads the attendance log straight from the terminal over a
// stateful socket session. One session per fetch, closed on all paths.
type DeviceClient struct {
	cfg *config.SourceConfig
	loc *time.Location
}

// NewDeviceClient builds a direct-mode client. loc is the device timezone
// used to interpret packed timestamps (nil means UTC).
func NewDeviceClient(cfg *config.SourceConfig, loc *time.Location) *DeviceClient {
	if loc == nil {
		loc = time.UTC
	}
	return &DeviceClient{cfg: cfg, loc: loc}
}

// Mode reports the transport.
func (c *DeviceClient) Mode() models.SourceMode {
	return models.SourceModeDevice
}

// Probe checks bare TCP reachability of the terminal.
func (c *DeviceClient) Probe(ctx context.Context) (models.ProbeResult, error) {
	return probeAddress(ctx, c.cfg.Address())
}

// Fetch opens one terminal session, reads the full attendance log, and
// returns the punches inside the window. Direct mode never supplies a
// direction hint: device punch codes are unreliable in the field, so the
// sequence classifier decides downstream.
func (c *DeviceClient) Fetch(ctx context.Context, window models.Window) (punches []models.RawPunch, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordSourceRequest(string(models.SourceModeDevice), time.Since(start), err)
	}()

	timeout := c.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, dialErr := dialer.DialContext(ctx, "tcp", c.cfg.Address())
	if dialErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreachable, dialErr)
	}
	defer func() { _ = conn.Close() }()

	// Cancellation closes the socket, failing any blocked read.
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watchdogDone:
		}
	}()

	session := newDeviceSession(conn, timeout)
	if err = session.connect(c.cfg.CommKey); err != nil {
		return nil, err
	}
	defer session.disconnect()

	data, err := session.readAttendanceLog()
	if err != nil {
		return nil, err
	}

	records := decodeAttendanceLog(data, c.loc)
	label := c.cfg.Address()
	for _, rec := range records {
		// Rows with an empty user id are padding, not punches.
		if rec.userID == "" || !window.Contains(rec.timestamp) {
			continue
		}
		punches = append(punches, models.RawPunch{
			SourceWorkerCode:  rec.userID,
			Timestamp:         rec.timestamp,
			DirectionHint:     models.DirectionUnspecified,
			SourceDeviceLabel: label,
		})
	}

	logging.Debug().Int("log_records", len(records)).Int("in_window", len(punches)).Msg("Device attendance log read")
	return punches, nil
}

// deviceSession tracks the command/reply sequence of one terminal
// connection.
type deviceSession struct {
	conn    net.Conn
	timeout time.Duration
	session uint16
	replyID uint16
}

func newDeviceSession(conn net.Conn, timeout time.Duration) *deviceSession {
	return &deviceSession{conn: conn, timeout: timeout}
}

// connect performs the handshake, answering an auth challenge with the
// configured comm key.
func (s *deviceSession) connect(commKey int) error {
	reply, err := s.roundTrip(cmdConnect, nil)
	if err != nil {
		return err
	}
	s.session = reply.session

	switch reply.command {
	case cmdAckOK:
		return nil
	case cmdAckUnauth:
		key := makeCommKey(commKey, s.session)
		reply, err = s.roundTrip(cmdAuth, key[:])
		if err != nil {
			return err
		}
		if reply.command != cmdAckOK {
			return fmt.Errorf("%w: device refused comm key (reply %d)", ErrSourceAuth, reply.command)
		}
		return nil
	default:
		return fmt.Errorf("%w: connect refused (reply %d)", ErrSourceUnreachable, reply.command)
	}
}

// disconnect ends the session. Best effort; the socket closes either way.
func (s *deviceSession) disconnect() {
	if _, err := s.roundTrip(cmdExit, nil); err != nil {
		logging.Debug().Err(err).Msg("Device session exit failed")
	}
}

// readAttendanceLog requests the attendance log. Small logs arrive inline
// in the acknowledgment; larger ones are announced with a prepare-data
// reply followed by data chunks and released with free-data.
func (s *deviceSession) readAttendanceLog() ([]byte, error) {
	reply, err := s.roundTrip(cmdAttLogRead, nil)
	if err != nil {
		return nil, err
	}

	switch reply.command {
	case cmdAckOK, cmdAckData:
		return reply.data, nil
	case cmdPrepareData:
		return s.readDataChunks(reply)
	case cmdAckError:
		return nil, fmt.Errorf("%w: device rejected attendance log read", ErrSourceMalformed)
	default:
		return nil, fmt.Errorf("%w: unexpected attendance log reply %d", ErrSourceMalformed, reply.command)
	}
}

func (s *deviceSession) readDataChunks(prepare packet) ([]byte, error) {
	if len(prepare.data) < 4 {
		return nil, fmt.Errorf("%w: prepare-data without a size", ErrSourceMalformed)
	}
	size := int(binary.LittleEndian.Uint32(prepare.data[:4]))
	if size > maxDevicePacket {
		return nil, fmt.Errorf("%w: implausible attendance log size %d", ErrSourceMalformed, size)
	}

	buf := make([]byte, 0, size)
	for {
		pkt, err := s.receive()
		if err != nil {
			return nil, err
		}
		switch pkt.command {
		case cmdData:
			buf = append(buf, pkt.data...)
			// The closing ack after the announced size is optional on
			// some firmwares.
			if len(buf) >= size {
				return s.release(buf)
			}
		case cmdAckOK:
			return s.release(buf)
		default:
			return nil, fmt.Errorf("%w: unexpected packet %d during data transfer", ErrSourceMalformed, pkt.command)
		}
	}
}

// release frees the device's transfer buffer.
func (s *deviceSession) release(buf []byte) ([]byte, error) {
	if _, err := s.roundTrip(cmdFreeData, nil); err != nil {
		logging.Debug().Err(err).Msg("Device free-data failed")
	}
	return buf, nil
}

func (s *deviceSession) roundTrip(command uint16, data []byte) (packet, error) {
	if err := s.send(command, data); err != nil {
		return packet{}, err
	}
	return s.receive()
}

func (s *deviceSession) send(command uint16, data []byte) error {
	s.replyID++
	frame := encodePacket(packet{command: command, session: s.session, reply: s.replyID, data: data})

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	if _, err := s.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}
	return nil
}

func (s *deviceSession) receive() (packet, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return packet{}, fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	header := make([]byte, 8)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return packet{}, fmt.Errorf("%w: reading frame header: %v", ErrSourceUnreachable, err)
	}
	if !bytes.Equal(header[:4], frameMagic) {
		return packet{}, fmt.Errorf("%w: bad frame magic %x", ErrSourceMalformed, header[:4])
	}
	size := binary.LittleEndian.Uint32(header[4:8])
	if size < packetHeaderLen || size > maxDevicePacket {
		return packet{}, fmt.Errorf("%w: implausible frame size %d", ErrSourceMalformed, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(s.conn, payload); err != nil {
		return packet{}, fmt.Errorf("%w: reading frame payload: %v", ErrSourceUnreachable, err)
	}
	return decodePayload(payload)
}
