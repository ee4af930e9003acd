package client

import (
	"fmt"
	"sort"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// Observer 表现层的回调接口，由 Store 在应用消息的协程上同步调用
type Observer interface {
	EntityChanged(id EntityID, kind ChangeKind, e Entity)
	BoardResized(width, height int)
}

// ObserverFuncs 以函数实现 Observer，未设置的回调忽略
type ObserverFuncs struct {
	OnEntityChanged func(id EntityID, kind ChangeKind, e Entity)
	OnBoardResized  func(width, height int)
}

func (o ObserverFuncs) EntityChanged(id EntityID, kind ChangeKind, e Entity) {
	if o.OnEntityChanged != nil {
		o.OnEntityChanged(id, kind, e)
	}
}

func (o ObserverFuncs) BoardResized(width, height int) {
	if o.OnBoardResized != nil {
		o.OnBoardResized(width, height)
	}
}

// Board 棋盘尺寸（render_map 下发的配置，不是实体）
type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type notice struct {
	id     EntityID
	kind   ChangeKind
	entity Entity
	board  *Board
}

// Store 实体 id -> 实体状态的唯一所有者。
// 写操作只在应用消息的协程上发生；读操作可以来自渲染循环或调试接口，因此用读写锁保护。
type Store struct {
	mu        deadlock.RWMutex
	entities  map[EntityID]*Entity
	localID   EntityID
	board     Board
	observers []*observerSlot

	log *zap.SugaredLogger
}

type observerSlot struct{ o Observer }

// NewStore 创建空的实体表
func NewStore(log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{
		entities: make(map[EntityID]*Entity),
		log:      log,
	}
}

// Subscribe 注册观察者，返回取消函数
func (s *Store) Subscribe(o Observer) (cancel func()) {
	slot := &observerSlot{o: o}
	s.mu.Lock()
	s.observers = append(s.observers, slot)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, cur := range s.observers {
			if cur == slot {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// Get 返回实体副本
func (s *Store) Get(id EntityID) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// All 返回所有实体的快照，按 id 排序
func (s *Store) All() []Entity {
	s.mu.RLock()
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 实体数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// Local 返回本地玩家
func (s *Store) Local() (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.localID == "" {
		return Entity{}, false
	}
	e, ok := s.entities[s.localID]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// LocalID 本地玩家 id，未注册时为空
func (s *Store) LocalID() EntityID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localID
}

// Board 当前棋盘尺寸
func (s *Store) Board() Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// Upsert 不存在则创建，否则合并字段；任何字段变化都会发出 Updated
func (s *Store) Upsert(id EntityID, f EntityFields) (Entity, error) {
	e, _, err := s.Merge(id, f, AllFields)
	return e, err
}

// Merge 与 Upsert 相同，但只有 notify 中的字段变化才发出 Updated。
// 死亡实体的更新只做记录，不发通知；死亡本身总会通知。
func (s *Store) Merge(id EntityID, f EntityFields, notify FieldMask) (Entity, Change, error) {
	if id == "" {
		return Entity{}, Change{}, fmt.Errorf("upsert: empty id: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	ch := Change{ID: id}
	e, ok := s.entities[id]
	if !ok {
		e = newEntity(id)
		e.merge(f)
		s.entities[id] = e
		ch.Kind = Created
		ch.Fields = AllFields
	} else {
		wasDead := e.Dead
		ch.Kind = Updated
		ch.Fields = e.merge(f)
		switch {
		case wasDead:
			ch.Suppressed = true
		case ch.Fields&FieldDead != 0:
		case ch.Fields&notify == 0:
			ch.Suppressed = true
		}
	}
	snap := *e
	var ns []notice
	if !ch.Suppressed && ch.Fields != 0 {
		ns = []notice{{id: id, kind: ch.Kind, entity: snap}}
	}
	obs := s.snapshotObservers()
	s.mu.Unlock()

	dispatch(obs, ns)
	return snap, ch, nil
}

// Register 以载荷新建本地玩家：同 id 的旧记录先移除，之前的本地标记被清除，
// 然后发出 Created（IsLocal 为 true）。
// 本地标记在断线（Clear）、移除或再次注册时清除。死亡不清除标记：
// 服务端的游戏结束即断开连接，之前 HUD 仍可读到阵亡的本地玩家。
func (s *Store) Register(f EntityFields) (Entity, error) {
	id := f.ID
	if id == "" {
		return Entity{}, fmt.Errorf("register: empty id: %w", ErrInvalidInput)
	}
	s.mu.Lock()
	var ns []notice
	if old, ok := s.entities[id]; ok {
		delete(s.entities, id)
		ns = append(ns, notice{id: id, kind: Removed, entity: *old})
	}
	if prev, ok := s.entities[s.localID]; ok && prev.IsLocal {
		prev.IsLocal = false
		ns = append(ns, notice{id: prev.ID, kind: Updated, entity: *prev})
	}
	e := newEntity(id)
	e.merge(f)
	e.IsLocal = true
	s.entities[id] = e
	s.localID = id
	snap := *e
	ns = append(ns, notice{id: id, kind: Created, entity: snap})
	obs := s.snapshotObservers()
	s.mu.Unlock()

	dispatch(obs, ns)
	return snap, nil
}

// SetLocal 将已存在的实体标记为本地玩家，之前的本地玩家被清除标记
func (s *Store) SetLocal(id EntityID) error {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("set local %q: %w", id, ErrUnknownEntity)
	}
	var ns []notice
	if s.localID != id {
		if prev, ok := s.entities[s.localID]; ok {
			prev.IsLocal = false
			ns = append(ns, notice{id: prev.ID, kind: Updated, entity: *prev})
		}
	}
	if !e.IsLocal {
		e.IsLocal = true
		ns = append(ns, notice{id: id, kind: Updated, entity: *e})
	}
	s.localID = id
	obs := s.snapshotObservers()
	s.mu.Unlock()

	dispatch(obs, ns)
	return nil
}

// Remove 删除实体；幂等，不存在的 id 返回 false
func (s *Store) Remove(id EntityID) bool {
	s.mu.Lock()
	e, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entities, id)
	if s.localID == id {
		s.localID = ""
	}
	snap := *e
	obs := s.snapshotObservers()
	s.mu.Unlock()

	dispatch(obs, []notice{{id: id, kind: Removed, entity: snap}})
	return true
}

// Clear 断线时清空实体表与本地标记，每个实体发出 Removed
func (s *Store) Clear() int {
	s.mu.Lock()
	ns := make([]notice, 0, len(s.entities))
	for id, e := range s.entities {
		ns = append(ns, notice{id: id, kind: Removed, entity: *e})
	}
	sort.Slice(ns, func(i, j int) bool { return ns[i].id < ns[j].id })
	s.entities = make(map[EntityID]*Entity)
	s.localID = ""
	obs := s.snapshotObservers()
	s.mu.Unlock()

	dispatch(obs, ns)
	return len(ns)
}

// Resize 更新棋盘尺寸，尺寸变化时通知观察者
func (s *Store) Resize(width, height int) {
	s.mu.Lock()
	b := Board{Width: width, Height: height}
	if s.board == b {
		s.mu.Unlock()
		return
	}
	s.board = b
	obs := s.snapshotObservers()
	s.mu.Unlock()

	dispatch(obs, []notice{{board: &b}})
}

// 调用方需持有锁
func (s *Store) snapshotObservers() []Observer {
	if len(s.observers) == 0 {
		return nil
	}
	out := make([]Observer, len(s.observers))
	for i, slot := range s.observers {
		out[i] = slot.o
	}
	return out
}

func dispatch(obs []Observer, ns []notice) {
	for _, n := range ns {
		for _, o := range obs {
			if n.board != nil {
				o.BoardResized(n.board.Width, n.board.Height)
				continue
			}
			o.EntityChanged(n.id, n.kind, n.entity)
		}
	}
}
