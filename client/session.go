package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FrameRecorder 记录每个入站帧（journal.Writer 实现）
type FrameRecorder interface {
	Record(frame []byte) error
}

// Options Session 的可选协作者
type Options struct {
	Logger   *zap.SugaredLogger
	Metrics  *Metrics
	Recorder FrameRecorder
	Observer Observer
	// OnState 在应用消息的协程上收到连接状态变化（用于连接状态指示）
	OnState func(st ConnState, err error)
}

// inbound 入站队列的元素：数据帧或状态变化
type inbound struct {
	frame       []byte
	stateChange bool
	state       ConnState
	err         error
}

// Session 一次逻辑会话的上下文对象：Transport、Store、Reconciler、Commander 在构造时
// 显式组装，没有进程级的隐藏状态。入站帧经由有界队列交给单个协程（Run 或 Pump）
// 逐条应用，保证状态变更按序且不交错。
type Session struct {
	cfg        Config
	log        *zap.SugaredLogger
	metrics    *Metrics
	store      *Store
	reconciler *Reconciler
	commands   *Commander
	transport  *Transport
	recorder   FrameRecorder
	onState    func(st ConnState, err error)

	inbound   chan inbound
	quit      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSession 组装会话；尚未连接
func NewSession(cfg Config, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = &Metrics{}
	}
	if cfg.InboundBuffer <= 0 {
		cfg.InboundBuffer = 256
	}

	s := &Session{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		recorder: opts.Recorder,
		onState:  opts.OnState,
		inbound:  make(chan inbound, cfg.InboundBuffer),
		quit:     make(chan struct{}),
	}
	s.store = NewStore(log.Named("store"))
	if opts.Observer != nil {
		s.store.Subscribe(opts.Observer)
	}
	s.reconciler = NewReconciler(s.store, metrics, log.Named("reconcile"))
	s.commands = NewCommander(s, s.store, cfg.ShootCooldown, metrics, log.Named("cmd"))
	s.transport = NewTransport(cfg.TransportConfig(), log.Named("ws"))
	s.transport.OnMessage(func(frame []byte) {
		s.enqueue(inbound{frame: frame})
	})
	s.transport.OnStateChange(func(st ConnState, err error) {
		in := inbound{stateChange: true, state: st, err: err}
		if st == StateClosed || st == StateErrored {
			s.enqueue(in)
			return
		}
		// Connecting/Open 只用于状态指示，队列满时丢弃
		select {
		case s.inbound <- in:
		default:
		}
	})
	return s
}

func (s *Session) Store() *Store         { return s.store }
func (s *Session) Commands() *Commander  { return s.commands }
func (s *Session) Metrics() *Metrics     { return s.metrics }
func (s *Session) State() ConnState      { return s.transport.State() }
func (s *Session) Transport() *Transport { return s.transport }

// Open 连接服务端
func (s *Session) Open(ctx context.Context, url string) error {
	select {
	case <-s.quit:
		return fmt.Errorf("open: session closed: %w", ErrNotConnected)
	default:
	}
	return s.transport.Connect(ctx, url)
}

// Run 在当前协程上逐条应用入站帧，直到 ctx 结束
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-s.inbound:
			s.handle(in)
		}
	}
}

// Pump 非阻塞地处理当前排队的全部入站帧，供宿主在自己的游戏循环中调用；返回处理数量
func (s *Session) Pump() int {
	n := 0
	for {
		select {
		case in := <-s.inbound:
			s.handle(in)
			n++
		default:
			return n
		}
	}
}

// Apply 同步地解码并应用一帧。也用于离线回放。
func (s *Session) Apply(frame []byte) error {
	s.metrics.IncFramesReceived()
	if s.recorder != nil {
		if err := s.recorder.Record(frame); err != nil {
			s.log.Warnf("record frame: %v", err)
		}
	}
	m, err := Decode(frame)
	if err != nil {
		return err
	}
	return s.reconciler.Apply(m)
}

// Send 编码并发送一条出站消息
func (s *Session) Send(m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if err := s.transport.Send(frame); err != nil {
		s.metrics.IncSendFailures()
		return fmt.Errorf("send %s: %w", m.MsgType(), err)
	}
	s.metrics.IncEnvelopesSent()
	return nil
}

// Close 尽力发送 unregister_user 后关闭连接并清空实体表。可重复调用。
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var err error
		if s.transport.State() == StateOpen {
			err = multierr.Append(err, s.Send(UnregisterUser{}))
		}
		err = multierr.Append(err, s.transport.Close())
		close(s.quit)
		// Run 已退出时最后的 Closed 不会被应用，这里直接清空
		if n := s.store.Clear(); n > 0 {
			s.log.Infof("session closed, cleared %d entities", n)
		}
		s.closeErr = err
	})
	return s.closeErr
}

func (s *Session) enqueue(in inbound) {
	select {
	case s.inbound <- in:
	case <-s.quit:
	}
}

func (s *Session) handle(in inbound) {
	if in.stateChange {
		s.handleState(in.state, in.err)
		return
	}
	err := s.Apply(in.frame)
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedMessage):
		s.metrics.IncFramesMalformed()
		s.log.Warnf("dropping frame: %v", err)
	case errors.Is(err, ErrUnknownEntity):
		s.log.Warnf("%v", err)
	default:
		s.log.Errorf("apply frame: %v", err)
	}
}

// 断线（Closed/Errored）时清空实体表，本地标记随之清除
func (s *Session) handleState(st ConnState, err error) {
	switch st {
	case StateClosed, StateErrored:
		n := s.store.Clear()
		s.log.Infof("connection %s, cleared %d entities", st, n)
	default:
		s.log.Debugf("connection %s", st)
	}
	if s.onState != nil {
		s.onState(st, err)
	}
}
