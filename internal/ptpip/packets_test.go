package ptpip

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestInitCommandRequest_Layout(t *testing.T) {
	guid := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	buf := InitCommandRequest(guid, "cam")

	if got := binary.LittleEndian.Uint32(buf[0:4]); int(got) != len(buf) {
		t.Errorf("total_len = %d, want %d", got, len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[4:8]); got != uint32(PacketInitCommandRequest) {
		t.Errorf("packet_type = 0x%08X, want 0x%08X", got, PacketInitCommandRequest)
	}
	if !bytes.Equal(buf[8:24], guid[:]) {
		t.Errorf("guid mismatch: got % X", buf[8:24])
	}

	// "cam" UTF-16LE + NUL terminator at offset 24
	wantName := []byte{'c', 0, 'a', 0, 'm', 0, 0, 0}
	if !bytes.Equal(buf[24:24+len(wantName)], wantName) {
		t.Errorf("name bytes = % X, want % X", buf[24:24+len(wantName)], wantName)
	}

	// Final 4 bytes are the protocol version 0x00010000
	tail := buf[len(buf)-4:]
	wantTail := []byte{0x00, 0x00, 0x01, 0x00}
	if !bytes.Equal(tail, wantTail) {
		t.Errorf("tail = % X, want % X", tail, wantTail)
	}
}

func TestOperationRequest_OpenSessionLayout(t *testing.T) {
	buf := OperationRequest(OpOpenSession, 1, []uint32{0x00000055}, DataPhaseNone)

	want := []byte{
		0x16, 0x00, 0x00, 0x00, // total_len = 22
		0x06, 0x00, 0x00, 0x00, // packet_type = OperationRequest
		0x01, 0x00, 0x00, 0x00, // phase = 1
		0x02, 0x10, // opcode = 0x1002
		0x01, 0x00, 0x00, 0x00, // txn = 1
		0x55, 0x00, 0x00, 0x00, // param S
	}
	if !bytes.Equal(buf, want) {
		t.Errorf("buf = % X, want % X", buf, want)
	}
}

func TestStartData_Layout(t *testing.T) {
	buf := StartData(7, 1_000_000)
	if len(buf) != 20 {
		t.Fatalf("len(buf) = %d, want 20", len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[8:12]); got != 7 {
		t.Errorf("txn = %d, want 7", got)
	}
	if got := binary.LittleEndian.Uint64(buf[12:20]); got != 1_000_000 {
		t.Errorf("payload_size = %d, want 1000000", got)
	}
}

func TestEndData_Layout(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	buf := EndData(42, payload)
	if len(buf) != headerSize+4+len(payload) {
		t.Fatalf("len(buf) = %d, want %d", len(buf), headerSize+4+len(payload))
	}
	if got := binary.LittleEndian.Uint32(buf[8:12]); got != 42 {
		t.Errorf("txn = %d, want 42", got)
	}
	if !bytes.Equal(buf[12:], payload) {
		t.Errorf("payload = % X, want % X", buf[12:], payload)
	}
}

func TestProbeRequest_IsBareHeader(t *testing.T) {
	buf := ProbeRequest()
	if len(buf) != 8 {
		t.Fatalf("len(buf) = %d, want 8", len(buf))
	}
	if TypeOf(buf) != PacketProbeRequest {
		t.Errorf("type = 0x%08X, want ProbeRequest", TypeOf(buf))
	}
}

func TestFieldReaders_ZeroOnTruncation(t *testing.T) {
	short := []byte{1, 2, 3}
	if got := TotalLen(short); got != 0 {
		t.Errorf("TotalLen(short) = %d, want 0", got)
	}
	if got := TypeOf(short); got != 0 {
		t.Errorf("TypeOf(short) = %d, want 0", got)
	}
	if got := ConnectionIDFrom(short); got != 0 {
		t.Errorf("ConnectionIDFrom(short) = %d, want 0", got)
	}
	if got := ResponseCodeFrom(short); got != 0 {
		t.Errorf("ResponseCodeFrom(short) = %d, want 0", got)
	}
	if got := AnnouncedSize(short); got != 0 {
		t.Errorf("AnnouncedSize(short) = %d, want 0", got)
	}
	if got := DataPayload(short); got != nil {
		t.Errorf("DataPayload(short) = % X, want nil", got)
	}
}

func TestInitEventRequest_CarriesConnectionID(t *testing.T) {
	buf := InitEventRequest(0x1234)
	if len(buf) != 12 {
		t.Fatalf("len(buf) = %d, want 12", len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[8:12]); got != 0x1234 {
		t.Errorf("connection_id = 0x%X, want 0x1234", got)
	}
}

func TestConnectionIDFrom_ReadsAckBytes(t *testing.T) {
	ack := make([]byte, 12)
	writeHeader(ack, PacketInitCommandAck)
	binary.LittleEndian.PutUint32(ack[8:12], 0xDEADBEEF)
	if got := ConnectionIDFrom(ack); got != 0xDEADBEEF {
		t.Errorf("ConnectionIDFrom = 0x%X, want 0xDEADBEEF", got)
	}
}

func TestResponseCodeFrom_ReadsOffset10(t *testing.T) {
	resp := make([]byte, 12)
	writeHeader(resp, PacketOperationResponse)
	binary.LittleEndian.PutUint16(resp[10:12], uint16(RespDeviceBusy))
	if got := ResponseCodeFrom(resp); got != RespDeviceBusy {
		t.Errorf("ResponseCodeFrom = 0x%04X, want 0x%04X", got, RespDeviceBusy)
	}
}
