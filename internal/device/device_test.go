package device

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ptpipcam/internal/ptpip"
)

// writeHeader fills in the shared 8-byte PTP/IP frame header: a u32 total
// length followed by a u32 packet type.
func writeHeader(buf []byte, packetType ptpip.PacketType) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(packetType))
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	var fr ptpip.Framer
	buf := make([]byte, 4096)
	for {
		if frame, ok, err := fr.Pop(); err != nil {
			t.Fatalf("framer error: %v", err)
		} else if ok {
			return frame
		}
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		fr.Feed(buf[:n])
	}
}

func writeFrame(t *testing.T, conn net.Conn, frame []byte) {
	t.Helper()
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func mockOperationResponse(code ptpip.ResponseCode) []byte {
	buf := make([]byte, 12)
	writeHeader(buf, ptpip.PacketOperationResponse)
	binary.LittleEndian.PutUint16(buf[10:12], uint16(code))
	return buf
}

// TestDevice_ConnectDrivesFullHandshake covers spec.md §8 end-to-end
// scenario 1: connect(ip) walks InitCommandAck -> InitEventAck -> OpenSession
// OK -> the six SdioSetup steps -> the GetObjectInfo live-view priming call,
// opening exactly two TCP connections (command, event) along the way.
func TestDevice_ConnectDrivesFullHandshake(t *testing.T) {
	const mockConnectionID = 0xAABBCCDD

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 2)
	done := make(chan struct{})
	go func() {
		defer close(done)

		cmdConn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- cmdConn
		req := readFrame(t, cmdConn)
		require.Equal(t, ptpip.PacketInitCommandRequest, ptpip.TypeOf(req))

		ack := make([]byte, 12)
		writeHeader(ack, ptpip.PacketInitCommandAck)
		binary.LittleEndian.PutUint32(ack[8:12], mockConnectionID)
		writeFrame(t, cmdConn, ack)

		eventConn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- eventConn
		eventReq := readFrame(t, eventConn)
		require.Equal(t, ptpip.PacketInitEventRequest, ptpip.TypeOf(eventReq))
		require.Equal(t, uint32(mockConnectionID), ptpip.ConnectionIDFrom(eventReq))

		eventAck := make([]byte, 8)
		writeHeader(eventAck, ptpip.PacketInitEventAck)
		writeFrame(t, eventConn, eventAck)

		// Six SdioSetup steps, OpenSession, then the GetObjectInfo priming
		// call issued by Device.Connect: eight operations in all.
		for i := 0; i < 8; i++ {
			opReq := readFrame(t, cmdConn)
			require.Equal(t, ptpip.PacketOperationRequest, ptpip.TypeOf(opReq))
			writeFrame(t, cmdConn, mockOperationResponse(ptpip.RespOK))
		}
	}()

	cam := NewWithPort("127.0.0.1", ln.Addr().(*net.TCPAddr).Port)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cam.Connect(ctx))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("mock camera never finished the handshake")
	}
	close(accepted)
	var conns []net.Conn
	for c := range accepted {
		conns = append(conns, c)
		defer c.Close()
	}
	require.Len(t, conns, 2, "connect must open exactly two TCP connections")

	require.True(t, cam.IsConnected())
	require.NoError(t, cam.Disconnect())
}

// TestExtractLiveViewFrame_Gating covers spec.md §8 "Live-view gating":
// too-short payload, an overrunning region, a zero-size region, and a
// missing SOI marker are all reported as absent rather than an error.
func TestExtractLiveViewFrame_Gating(t *testing.T) {
	header := func(offset, size uint32) []byte {
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint32(buf[0:4], offset)
		binary.LittleEndian.PutUint32(buf[4:8], size)
		return buf
	}

	t.Run("too short", func(t *testing.T) {
		_, ok := ExtractLiveViewFrame(make([]byte, 16))
		require.False(t, ok)
	})

	t.Run("overruns payload", func(t *testing.T) {
		payload := append(header(16, 1000), []byte{0xFF, 0xD8}...)
		_, ok := ExtractLiveViewFrame(payload)
		require.False(t, ok)
	})

	t.Run("zero size", func(t *testing.T) {
		payload := append(header(16, 0), []byte{0xFF, 0xD8}...)
		_, ok := ExtractLiveViewFrame(payload)
		require.False(t, ok)
	})

	t.Run("missing SOI", func(t *testing.T) {
		payload := append(header(16, 5), []byte{0x00, 0x01, 0x02, 0x03, 0x04}...)
		_, ok := ExtractLiveViewFrame(payload)
		require.False(t, ok)
	})

	t.Run("valid frame", func(t *testing.T) {
		payload := append(header(16, 5), []byte{0xFF, 0xD8, 0xAA, 0xBB, 0xCC}...)
		frame, ok := ExtractLiveViewFrame(payload)
		require.True(t, ok)
		require.Equal(t, []byte{0xFF, 0xD8, 0xAA, 0xBB, 0xCC}, frame)
	})
}

// TestSetISO_Scenario2 covers spec.md §8 end-to-end scenario 2: the wire
// payload for set_iso("800") is the 4-byte LE encoding of 800.
func TestSetISO_Scenario2(t *testing.T) {
	v, err := EncodeISO("800")
	require.NoError(t, err)
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, v)
	require.Equal(t, []byte{0x20, 0x03, 0x00, 0x00}, payload)
}

// TestSetWhiteBalance_Scenario3 covers scenario 3: set_white_balance
// ("daylight") is a 2-byte LE payload.
func TestSetWhiteBalance_Scenario3(t *testing.T) {
	v, err := EncodeWhiteBalance("daylight")
	require.NoError(t, err)
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, uint16(v))
	require.Equal(t, []byte{0x04, 0x00}, payload)
}

// TestStartZoom_Scenario5 covers scenario 5: start_zoom("in", 3) is a
// 4-byte LE payload.
func TestStartZoom_Scenario5(t *testing.T) {
	v, err := EncodeZoom("in", 3)
	require.NoError(t, err)
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, v)
	require.Equal(t, []byte{0x03, 0x00, 0x01, 0x00}, payload)
}
