package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"storageracks.ai/internal/protocol"
	"storageracks.ai/internal/sim/cluster"
	"storageracks.ai/internal/sim/world"
)

const (
	helloTimeout   = 5 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 5 * time.Second
	requestTimeout = 10 * time.Second
	outQueue       = 32
)

type Server struct {
	world     *world.World
	log       *log.Logger
	validator *protocol.Validator

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, v *protocol.Validator, logger *log.Logger) *Server {
	return &Server{
		world:     w,
		log:       logger,
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sessionID, client := s.handshake(conn)
		if sessionID == "" {
			return
		}
		if s.log != nil {
			s.log.Printf("session %s connected client=%s remote=%s", sessionID, client, r.RemoteAddr)
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, outQueue)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests of one session are submitted in order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.handle(ctx, sessionID, msg)
			b, err := json.Marshal(resp)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done

		if s.log != nil {
			s.log.Printf("session %s closed", sessionID)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID, client string) {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", ""
	}
	if s.validator != nil {
		if err := s.validator.ValidateHello(msg); err != nil {
			closeWith(conn, "bad HELLO")
			return "", ""
		}
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return "", ""
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", ""
	}

	cfg := s.world.Config()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		WorldID:         cfg.ID,
		WorldParams: protocol.WorldParams{
			TickRateHz:   cfg.TickRateHz,
			BaseSlots:    cfg.Layout.BaseSlots,
			SlotsPerTier: cfg.Layout.SlotsPerTier,
			MaxRackTier:  cfg.Layout.MaxTier,
			TierUnit:     cfg.TierUnit,
		},
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", ""
	}
	return welcome.SessionID, strings.TrimSpace(hello.ClientName)
}

func (s *Server) handle(ctx context.Context, sessionID string, msg []byte) protocol.RespMsg {
	resp := protocol.RespMsg{Type: protocol.TypeResp, ProtocolVersion: protocol.Version}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeReq {
		return fail(resp, protocol.ErrProtoBadRequest, "expected REQ", s.world.CurrentTick())
	}
	var req protocol.ReqMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return fail(resp, protocol.ErrProtoBadRequest, err.Error(), s.world.CurrentTick())
	}
	resp.ID = req.ID
	if s.validator != nil {
		if err := s.validator.ValidateReq(msg); err != nil {
			return fail(resp, protocol.ErrProtoBadRequest, err.Error(), s.world.CurrentTick())
		}
	}
	if req.ProtocolVersion != protocol.Version {
		return fail(resp, protocol.ErrProtoBadRequest, "bad protocol_version", s.world.CurrentTick())
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	out, err := s.world.Submit(ctx, world.Request{Actor: sessionID, Req: req})
	if err != nil {
		return fail(resp, CodeFor(err), err.Error(), s.world.CurrentTick())
	}
	resp.ServerTick = out.Tick
	resp.Data = out.Data
	if out.Err != nil {
		resp.Code = CodeFor(out.Err)
		resp.Message = out.Err.Error()
		return resp
	}
	resp.OK = true
	return resp
}

// CodeFor maps a world or topology error to a protocol error code.
func CodeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, cluster.ErrConflict):
		return protocol.ErrConflict
	case errors.Is(err, cluster.ErrCapacityExceeded):
		return protocol.ErrCapacity
	case errors.Is(err, cluster.ErrNotConnected):
		return protocol.ErrNotConnected
	case errors.Is(err, world.ErrOccupied):
		return protocol.ErrOccupied
	case errors.Is(err, world.ErrNoController):
		return protocol.ErrNoController
	case errors.Is(err, world.ErrBadTier), errors.Is(err, world.ErrInvalidTierTransition):
		return protocol.ErrInvalidTier
	case errors.Is(err, world.ErrNoNode), errors.Is(err, world.ErrNoRack), errors.Is(err, world.ErrBadSlot):
		return protocol.ErrInvalidTarget
	case errors.Is(err, world.ErrBusy), errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrWorldBusy
	case errors.Is(err, world.ErrUnknownOp):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func fail(resp protocol.RespMsg, code, msg string, tick uint64) protocol.RespMsg {
	resp.OK = false
	resp.Code = code
	resp.Message = msg
	resp.ServerTick = tick
	return resp
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
