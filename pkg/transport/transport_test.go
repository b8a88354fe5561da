package transport

import (
	"net"
	"testing"
	"time"

	"goca/pkg/wire"
)

type recordingHandler struct {
	frames chan wire.Frame
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{frames: make(chan wire.Frame, 16)}
}

func (h *recordingHandler) HandleFrame(t *Transport, f wire.Frame) {
	h.frames <- f
}

type recordingDeathHandler struct {
	died chan *Transport
}

func (h *recordingDeathHandler) HandleTransportDeath(t *Transport) {
	h.died <- t
}

func TestTransportSendAndReceive(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	handler := newRecordingHandler()
	tr, err := New(Config{
		Address:       "peer:5064",
		Conn:          clientConn,
		MaxArrayBytes: 16384,
		FrameHandler:  handler,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer tr.Close()

	if err := tr.Send(wire.Header{Command: wire.CmdEcho}, nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	buf := make([]byte, 16)
	if _, err := fillFrom(serverConn, buf); err != nil {
		t.Fatalf("server read: %v", err)
	}
	hdr, _, err := wire.DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader() error = %v", err)
	}
	if hdr.Command != wire.CmdEcho {
		t.Errorf("Command = %v, want CmdEcho", hdr.Command)
	}

	// Server sends a frame back; the receive loop should dispatch it.
	resp := wire.EncodeFrame(wire.Header{Command: wire.CmdEcho}, nil)
	if _, err := serverConn.Write(resp); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case f := <-handler.frames:
		if f.Header.Command != wire.CmdEcho {
			t.Errorf("received Command = %v, want CmdEcho", f.Header.Command)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched frame")
	}
}

func TestTransportMarksDeadOnConnError(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	handler := newRecordingHandler()
	death := &recordingDeathHandler{died: make(chan *Transport, 1)}

	tr, err := New(Config{
		Address:      "peer:5064",
		Conn:         clientConn,
		FrameHandler: handler,
		DeathHandler: death,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverConn.Close()
	clientConn.Close()

	select {
	case <-death.died:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for death notification")
	}
	if !tr.IsDead() {
		t.Error("IsDead() = false after connection closed")
	}
}

func fillFrom(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
