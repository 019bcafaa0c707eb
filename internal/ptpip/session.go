package ptpip

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var sessionLog = logrus.WithField("component", "session")

// opRequest is a unit of work submitted to the session executor. Only the
// executor goroutine ever touches the command socket, the transaction
// counter, or the command channel's framer accumulator (spec.md §9
// "actor-style state ownership"); the event channel is read by runEventLoop.
type opRequest struct {
	opcode          Opcode
	params          []uint32
	outboundPayload []byte
	inboundData     bool
	result          chan opResult
}

type opResult struct {
	response []byte
	payload  []byte
	err      error
}

// Session implements the PTP/IP state machine (spec.md §4.3): handshake,
// session open, SDIO vendor handshake, transaction counter, operation
// correlation, keep-alive, and shutdown. It is the generalisation of the
// teacher's vens.ControlSession/vens.Heartbeat pair to a single long-lived
// connection per channel instead of one dial-per-call.
type Session struct {
	host string
	port int

	guid         [16]byte
	connectionID uint32
	sessionID    uint32
	txnCounter   atomic.Uint32
	state        atomic.Int32

	cmd   *Channel
	event *Channel

	opRequests      chan opRequest
	refreshGroup    singleflight.Group
	propertyUpdates chan map[uint16]PropertyValue

	eg     *errgroup.Group
	cancel context.CancelFunc
}

// NewSession creates a Session targeting host on the standard PTP/IP port.
func NewSession(host string) *Session {
	return NewSessionWithPort(host, DefaultPort)
}

// NewSessionWithPort creates a Session targeting a non-standard port,
// for tests driving a loopback mock camera.
func NewSessionWithPort(host string, port int) *Session {
	return &Session{
		host:            host,
		port:            port,
		guid:            NewClientGUID(),
		opRequests:      make(chan opRequest),
		propertyUpdates: make(chan map[uint16]PropertyValue, 1),
	}
}

// State returns the session's current state-machine node.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// ConnectionID returns the connection id assigned by the camera during
// InitCommand.
func (s *Session) ConnectionID() uint32 { return s.connectionID }

// PropertyUpdates delivers the result of each event-triggered property
// refresh, latest value winning over any the caller hasn't read yet.
func (s *Session) PropertyUpdates() <-chan map[uint16]PropertyValue {
	return s.propertyUpdates
}

// Connect runs the state machine from Disconnected through Ready
// (spec.md §4.3 stages 1–6) and then starts the background executor,
// keep-alive, and event-read loops.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(Connecting)
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	cmd, err := Dial("command", addr)
	if err != nil {
		s.setState(Disconnected)
		return err
	}
	s.cmd = cmd

	s.setState(InitCommand)
	if err := s.initCommand(); err != nil {
		s.cmd.Close()
		s.setState(Disconnected)
		return err
	}

	s.setState(InitEvent)
	event, err := Dial("event", addr)
	if err != nil {
		s.cmd.Close()
		s.setState(Disconnected)
		return fmt.Errorf("%w", err)
	}
	s.event = event
	if err := s.initEvent(); err != nil {
		s.cmd.Close()
		s.event.Close()
		s.setState(Disconnected)
		return err
	}

	s.setState(OpeningSession)
	if err := s.openSession(); err != nil {
		s.cmd.Close()
		s.event.Close()
		s.setState(Disconnected)
		return err
	}

	s.setState(SdioSetup)
	if err := s.sdioSetup(); err != nil {
		s.cmd.Close()
		s.event.Close()
		s.setState(Disconnected)
		return err
	}

	s.setState(Ready)

	rootCtx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(rootCtx)
	s.eg = eg
	s.cancel = cancel

	eg.Go(func() error { s.runExecutor(egCtx); return nil })
	eg.Go(func() error { s.runEventLoop(egCtx); return nil })

	sessionLog.WithField("host", s.host).Info("session ready")
	return nil
}

// initCommand performs spec.md §4.3 stage 2.
func (s *Session) initCommand() error {
	if err := s.cmd.Send(InitCommandRequest(s.guid, FriendlyName)); err != nil {
		return &HandshakeError{Stage: InitCommand, Reason: err.Error()}
	}
	frame, err := s.cmd.Receive()
	if err != nil {
		return &HandshakeError{Stage: InitCommand, Reason: err.Error()}
	}
	if TypeOf(frame) != PacketInitCommandAck {
		return &HandshakeError{Stage: InitCommand, Reason: fmt.Sprintf("unexpected packet type 0x%08X", TypeOf(frame))}
	}
	if len(frame) < 12 {
		return &HandshakeError{Stage: InitCommand, Reason: "InitCommandAck truncated"}
	}
	s.connectionID = ConnectionIDFrom(frame)
	return nil
}

// initEvent performs spec.md §4.3 stage 3. It does not start the event-read
// loop: Connect starts that only once the session has reached Ready, so
// Event packets arriving during OpenSession and SdioSetup are read then.
func (s *Session) initEvent() error {
	if err := s.event.Send(InitEventRequest(s.connectionID)); err != nil {
		return &HandshakeError{Stage: InitEvent, Reason: err.Error()}
	}
	frame, err := s.event.Receive()
	if err != nil {
		return &HandshakeError{Stage: InitEvent, Reason: err.Error()}
	}
	if TypeOf(frame) != PacketInitEventAck {
		return &HandshakeError{Stage: InitEvent, Reason: fmt.Sprintf("unexpected packet type 0x%08X", TypeOf(frame))}
	}
	return nil
}

// openSession performs spec.md §4.3 stage 4.
func (s *Session) openSession() error {
	s.sessionID = NewSessionID()
	_, _, err := s.performOperation(OpOpenSession, []uint32{s.sessionID}, nil, false)
	if err != nil {
		if opErr, ok := err.(*OperationError); ok && opErr.Code == RespSessionAlreadyOpen {
			return nil
		}
		return &HandshakeError{Stage: OpeningSession, Reason: err.Error()}
	}
	return nil
}

// sdioSetup performs spec.md §4.3 stage 5, in order.
func (s *Session) sdioSetup() error {
	steps := []struct {
		name   string
		opcode Opcode
		params []uint32
	}{
		{"GetDeviceInfo", OpGetDeviceInfo, nil},
		{"GetStorageIDs", OpGetStorageIDs, nil},
		{"SdioConnect(1)", OpSdioConnect, []uint32{1}},
		{"SdioConnect(2)", OpSdioConnect, []uint32{2}},
		{"SdioConnect(3)", OpSdioConnect, []uint32{3}},
		{"SdioGetExtDeviceInfo", OpSdioGetExtDeviceInfo, []uint32{0x00C8}},
	}
	for _, step := range steps {
		if _, _, err := s.performOperation(step.opcode, step.params, nil, false); err != nil {
			return &HandshakeError{Stage: SdioSetup, Reason: step.name + ": " + err.Error()}
		}
	}
	return nil
}

// performOperation implements the three operation shapes of spec.md §4.3
// "Operation protocol" uniformly: plain request/response, outbound data
// phase, and inbound data phase, distinguished by outboundPayload and
// inboundData.
func (s *Session) performOperation(opcode Opcode, params []uint32, outboundPayload []byte, inboundData bool) (response, payload []byte, err error) {
	txn := s.txnCounter.Inc()

	phase := uint32(DataPhaseNone)
	if outboundPayload != nil {
		phase = DataPhaseData
	}
	if err := s.cmd.Send(OperationRequest(opcode, txn, params, phase)); err != nil {
		return nil, nil, err
	}

	if outboundPayload != nil {
		if err := s.cmd.Send(StartData(txn, uint64(len(outboundPayload)))); err != nil {
			return nil, nil, err
		}
		if err := s.cmd.Send(EndData(txn, outboundPayload)); err != nil {
			return nil, nil, err
		}
	}

	var payloadBuf []byte
	for {
		frame, err := s.cmd.Receive()
		if err != nil {
			return nil, nil, err
		}
		switch TypeOf(frame) {
		case PacketOperationResponse:
			code := ResponseCodeFrom(frame)
			if code != RespOK {
				return frame, payloadBuf, &OperationError{Opcode: opcode, Code: code}
			}
			return frame, payloadBuf, nil
		case PacketData, PacketEndData:
			if inboundData {
				payloadBuf = append(payloadBuf, DataPayload(frame)...)
			}
		default:
			// discarded — e.g. a stray probe response or StartData
		}
	}
}

// Do submits an operation to the executor and blocks for its result. It
// is the only way code outside the executor goroutine touches the wire.
func (s *Session) Do(ctx context.Context, opcode Opcode, params []uint32, outboundPayload []byte, inboundData bool) (response, payload []byte, err error) {
	if s.State() != Ready {
		return nil, nil, ErrNotConnected
	}
	req := opRequest{opcode: opcode, params: params, outboundPayload: outboundPayload, inboundData: inboundData, result: make(chan opResult, 1)}
	select {
	case s.opRequests <- req:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case res := <-req.result:
		return res.response, res.payload, res.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// runExecutor is the session executor: the single goroutine that
// serialises all command-channel traffic for the lifetime of the Ready
// state. It runs alongside runEventLoop under the session's errgroup.
func (s *Session) runExecutor(ctx context.Context) {
	keepAlive := newKeepAliveTicker()
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.opRequests:
			resp, payload, err := s.performOperation(req.opcode, req.params, req.outboundPayload, req.inboundData)
			req.result <- opResult{response: resp, payload: payload, err: err}
			// A tick that fell due during the operation is skipped, not sent late.
			select {
			case <-keepAlive.C():
			default:
			}
		case <-keepAlive.C():
			if err := s.cmd.Send(ProbeRequest()); err != nil {
				sessionLog.WithError(err).Warn("keep-alive probe send failed")
			}
		}
	}
}

// runEventLoop reads the event channel continuously, triggering a
// singleflight-collapsed property refresh whenever an Event packet
// arrives (spec.md §4.3 Event handling), generalising the teacher's
// scanner.ButtonListener read-parse-callback loop.
func (s *Session) runEventLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := s.event.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			sessionLog.WithError(err).Debug("event channel read error")
			continue
		}
		if TypeOf(frame) != PacketEvent {
			continue
		}
		go s.refreshProperties(ctx)
	}
}

// refreshProperties issues SdioGetAllExtDevicePropInfo and publishes the
// result, collapsing concurrent callers triggered by a burst of Event
// packets into one in-flight round trip.
func (s *Session) refreshProperties(ctx context.Context) {
	_, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		_, payload, err := s.Do(ctx, OpSdioGetAllExtDevicePropInfo, nil, nil, true)
		if err != nil {
			return nil, err
		}
		props, err := ParseAllPropDesc(payload)
		if err != nil {
			return nil, err
		}
		s.publishPropertyUpdate(props)
		return props, nil
	})
	if err != nil {
		sessionLog.WithError(err).Debug("event-triggered property refresh failed")
	}
}

func (s *Session) publishPropertyUpdate(props map[uint16]PropertyValue) {
	for {
		select {
		case s.propertyUpdates <- props:
			return
		default:
			select {
			case <-s.propertyUpdates:
			default:
			}
		}
	}
}

// Disconnect transitions to Closing and tears down both sockets,
// aggregating every failure encountered instead of reporting only the
// first (spec.md §4.3 stage 7). Sockets are closed before the executor
// and event loop are joined: runEventLoop sits in a blocking Receive
// most of the time, and only closing its socket — not cancelling its
// context — unblocks that call promptly.
func (s *Session) Disconnect() error {
	s.setState(Closing)
	if s.cancel != nil {
		s.cancel()
	}

	var result *multierror.Error
	if s.cmd != nil {
		if err := s.cmd.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close command channel: %w", err))
		}
	}
	if s.event != nil {
		if err := s.event.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close event channel: %w", err))
		}
	}

	if s.eg != nil {
		s.eg.Wait()
	}

	s.setState(Disconnected)
	return result.ErrorOrNil()
}
