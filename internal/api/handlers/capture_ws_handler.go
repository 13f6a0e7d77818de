package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/prepstage/intervue/internal/analysis"
	"github.com/prepstage/intervue/internal/services"
	"github.com/prepstage/intervue/internal/utils"
)

// CaptureWSHandler streams webcam frames from the client into a per-question
// capture buffer, and forwards worker progress published on the interview's
// Redis channels back down the same socket.
type CaptureWSHandler struct {
	interviews services.InterviewService
	captures   services.CaptureService
	redis      *redis.Client
	upgrader   websocket.Upgrader
}

func NewCaptureWSHandler(interviews services.InterviewService, captures services.CaptureService, rdb *redis.Client) *CaptureWSHandler {
	return &CaptureWSHandler{
		interviews: interviews,
		captures:   captures,
		redis:      rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type captureClientMsg struct {
	Type           string `json:"type"` // begin|frame|stop
	QuestionNumber int    `json:"question_number"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	JPEGBase64     string `json:"jpeg_base64"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.writeText(b)
}

func (h *CaptureWSHandler) CaptureWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	interviewID := c.Param("interview_id")
	if interviewID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "CaptureWSHandler.CaptureWS", "missing interview_id", nil))
		return
	}

	iv, err := h.interviews.Get(c.Request.Context(), interviewID)
	if err != nil {
		writeError(c, err)
		return
	}
	if iv.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "CaptureWSHandler.CaptureWS", "forbidden", nil))
		return
	}
	if iv.Status.Terminal() {
		writeError(c, utils.E(utils.CodeForbidden, "CaptureWSHandler.CaptureWS", "interview already "+string(iv.Status), nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	respCh := "interview:" + interviewID + ":response"
	statusCh := "interview:" + interviewID + ":status"

	pubsub := h.redis.Subscribe(ctx, respCh, statusCh)
	defer pubsub.Close()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			var msg captureClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}
			if msg.QuestionNumber <= 0 {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"question_number must be > 0"}`))
				continue
			}

			switch msg.Type {
			case "begin":
				if err := h.captures.Begin(ctx, interviewID, msg.QuestionNumber); err != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"INTERNAL","message":"failed to begin capture"}`))
					continue
				}
				_ = wc.writeJSON(map[string]any{"type": "capture_started", "question_number": msg.QuestionNumber})

			case "frame":
				if msg.JPEGBase64 == "" {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"jpeg_base64 required"}`))
					continue
				}
				img, derr := base64.StdEncoding.DecodeString(msg.JPEGBase64)
				if derr != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid jpeg_base64"}`))
					continue
				}

				accepted, ferr := h.captures.AppendFrame(interviewID, msg.QuestionNumber, analysis.Frame{
					Width:      msg.Width,
					Height:     msg.Height,
					Image:      img,
					CapturedAt: time.Now().UTC(),
				})
				if ferr != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"INTERNAL","message":"failed to buffer frame"}`))
					continue
				}
				if !accepted {
					// buffer full; the client can stop sending for this question
					_ = wc.writeJSON(map[string]any{"type": "frame_dropped", "question_number": msg.QuestionNumber})
				}

			case "stop":
				result, serr := h.captures.Finish(ctx, interviewID, msg.QuestionNumber)
				if serr != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"INTERNAL","message":"capture analysis failed"}`))
					continue
				}
				if result == nil {
					_ = wc.writeJSON(map[string]any{"type": "capture_discarded", "question_number": msg.QuestionNumber})
					continue
				}
				_ = wc.writeJSON(map[string]any{
					"type":            "capture_analyzed",
					"question_number": msg.QuestionNumber,
					"result":          result,
				})

			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			// forward as-is (payload expected JSON string)
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}
