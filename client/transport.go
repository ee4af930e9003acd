package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// ConnState 连接状态机：Connecting -> Open -> {Closed | Errored}
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
	StateErrored
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// TransportConfig 传输层参数
type TransportConfig struct {
	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	ReadTimeout      time.Duration
	PingPeriod       time.Duration
	ReadLimit        int64
	SendBuffer       int
	Token            string
}

// Transport 持有一条 WebSocket 连接：读协程按到达顺序回调每一帧，写协程从发送队列写出。
// 断线只上报不重连；重试由调用方的包装负责。
type Transport struct {
	cfg TransportConfig
	log *zap.SugaredLogger

	mu        deadlock.Mutex
	ws        *websocket.Conn
	send      chan []byte
	state     ConnState
	closing   bool
	writeDone chan struct{}
	readDone  chan struct{}
	onMessage func(frame []byte)
	onState   func(st ConnState, err error)
}

// NewTransport 创建未连接的传输层
func NewTransport(cfg TransportConfig, log *zap.SugaredLogger) *Transport {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Transport{cfg: cfg, log: log}
}

// OnMessage 注册入站帧回调，需在 Connect 之前调用
func (t *Transport) OnMessage(h func(frame []byte)) {
	t.mu.Lock()
	t.onMessage = h
	t.mu.Unlock()
}

// OnStateChange 注册状态变化回调
func (t *Transport) OnStateChange(h func(st ConnState, err error)) {
	t.mu.Lock()
	t.onState = h
	t.mu.Unlock()
}

// State 当前状态
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect 建立一条连接。握手失败返回 ErrConnection 并进入 Errored。
// 只有 Idle/Closed/Errored 状态下可以调用。
func (t *Transport) Connect(ctx context.Context, rawURL string) error {
	t.mu.Lock()
	if t.state == StateConnecting || t.state == StateOpen {
		st := t.state
		t.mu.Unlock()
		return fmt.Errorf("connect %s: transport already %s", rawURL, st)
	}
	t.state = StateConnecting
	t.closing = false
	t.mu.Unlock()
	t.notify(StateConnecting, nil)

	hdr := http.Header{}
	if t.cfg.Token != "" {
		hdr.Set("Authorization", "Bearer "+t.cfg.Token)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	t.log.Infof("ws dial: %s", rawURL)
	ws, resp, err := dialer.DialContext(ctx, rawURL, hdr)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			_ = resp.Body.Close()
			err = fmt.Errorf("%w: %s %s", err, resp.Status, string(body))
		}
		err = fmt.Errorf("%w: dial %s: %w", ErrConnection, rawURL, err)
		t.log.Warnf("%v", err)
		t.mu.Lock()
		t.state = StateErrored
		t.mu.Unlock()
		t.notify(StateErrored, err)
		return err
	}
	if t.cfg.ReadLimit > 0 {
		ws.SetReadLimit(t.cfg.ReadLimit)
	}

	t.mu.Lock()
	t.ws = ws
	t.send = make(chan []byte, t.cfg.SendBuffer)
	t.writeDone = make(chan struct{})
	t.readDone = make(chan struct{})
	t.state = StateOpen
	send, writeDone, readDone := t.send, t.writeDone, t.readDone
	t.mu.Unlock()

	t.log.Infof("ws connected: %s", rawURL)
	t.notify(StateOpen, nil)

	go t.writePump(ws, send, writeDone)
	go t.readPump(ws, readDone)
	return nil
}

// Send 将序列化好的帧压入发送队列（非阻塞）。未连接时返回 ErrNotConnected，
// 队列满时丢弃并返回 ErrSendBufferFull。
func (t *Transport) Send(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateOpen || t.send == nil || t.closing {
		return ErrNotConnected
	}
	select {
	case t.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close 冲刷发送队列、写出关闭帧后关闭连接，并等待读协程结束（最多 WriteWait）
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.ws == nil || t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	ws, writeDone, readDone := t.ws, t.writeDone, t.readDone
	if t.send != nil {
		// 关闭发送通道以结束写协程
		close(t.send)
		t.send = nil
	}
	t.mu.Unlock()

	timer := time.NewTimer(t.cfg.WriteWait)
	defer timer.Stop()
	select {
	case <-writeDone:
	case <-timer.C:
	}
	err := ws.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	select {
	case <-readDone:
	case <-timer.C:
	}
	return err
}

// writePump 独立协程，负责从 send 队列写出到 WS；队列关闭后写出关闭帧
func (t *Transport) writePump(ws *websocket.Conn, send <-chan []byte, done chan<- struct{}) {
	defer close(done)
	var ping <-chan time.Time
	if t.cfg.PingPeriod > 0 {
		ticker := time.NewTicker(t.cfg.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case msg, ok := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				t.log.Warnf("ws write: %v", err)
				_ = ws.Close()
				return
			}
		case <-ping:
			_ = ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.log.Warnf("ws ping: %v", err)
				_ = ws.Close()
				return
			}
		}
	}
}

// readPump 按到达顺序把每个数据帧交给 onMessage；退出时上报 Closed 或 Errored
func (t *Transport) readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	t.mu.Lock()
	handler := t.onMessage
	t.mu.Unlock()

	if t.cfg.ReadTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		})
	}

	var readErr error
	for {
		kind, payload, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if t.cfg.ReadTimeout > 0 {
			_ = ws.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		if handler != nil {
			handler(payload)
		}
	}

	t.mu.Lock()
	final := StateErrored
	if t.closing || websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		final = StateClosed
		readErr = nil
	}
	if t.ws == ws {
		if t.send != nil {
			close(t.send)
			t.send = nil
		}
		t.ws = nil
		t.state = final
	}
	t.mu.Unlock()
	_ = ws.Close()

	if final == StateErrored {
		readErr = fmt.Errorf("ws read: %w", readErr)
		t.log.Warnf("%v", readErr)
	} else {
		t.log.Infof("ws closed")
	}
	t.notify(final, readErr)
}

func (t *Transport) notify(st ConnState, err error) {
	t.mu.Lock()
	h := t.onState
	t.mu.Unlock()
	if h != nil {
		h(st, err)
	}
}
