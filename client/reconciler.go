package client

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Reconciler 将解码后的入站消息应用到 Store。除单条消息内的差异外不持有状态。
type Reconciler struct {
	store   *Store
	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewReconciler 创建协调器；metrics 与 log 可以为 nil
func NewReconciler(store *Store, metrics *Metrics, log *zap.SugaredLogger) *Reconciler {
	if metrics == nil {
		metrics = &Metrics{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Reconciler{store: store, metrics: metrics, log: log}
}

// Apply 同步地应用一条消息；返回前所有变更通知都已派发
func (r *Reconciler) Apply(m Message) error {
	switch msg := m.(type) {
	case RenderMap:
		r.store.Resize(msg.Width, msg.Height)
	case RegisterUser:
		e, err := r.store.Register(msg.EntityFields)
		if err != nil {
			return err
		}
		r.log.Infof("registered local entity id=%s health=%d/%d", e.ID, e.Health, e.MaxHealth)
	case UnregisterUser:
		if !r.store.Remove(msg.ID) {
			r.metrics.IncUnknownEntity()
			return fmt.Errorf("unregister_user %q: %w", msg.ID, ErrUnknownEntity)
		}
	case PlayerUpdate:
		return r.applyPlayerUpdate(msg)
	case UsersMap:
		r.applyUsersMap(msg)
	case Unknown:
		r.metrics.IncUnknownType()
		r.log.Debugf("ignoring message type %q", msg.Type)
	default:
		// 出站类型不应由服务端下发，同样忽略
		r.metrics.IncUnknownType()
		r.log.Debugf("ignoring message type %q", m.MsgType())
	}
	return nil
}

// player_update 只作用于本地玩家，忽略载荷中的 id
func (r *Reconciler) applyPlayerUpdate(msg PlayerUpdate) error {
	id := r.store.LocalID()
	if id == "" {
		r.metrics.IncUnknownEntity()
		return fmt.Errorf("player_update before register_user: %w", ErrUnknownEntity)
	}
	f := msg.EntityFields
	f.ID = id
	e, ch, err := r.store.Merge(id, f, AllFields)
	if err != nil {
		return err
	}
	r.noteChange(e, ch)
	return nil
}

// users_map 是除本地玩家外所有实体的快照。已知 id 做差异合并，仅动画相关字段变化时通知；
// 未知 id 新建。快照中缺席的实体不会被移除，移除只由 unregister_user 触发。
func (r *Reconciler) applyUsersMap(msg UsersMap) {
	local := r.store.LocalID()
	ids := make([]EntityID, 0, len(msg.Entries))
	for id := range msg.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if id == local {
			continue
		}
		e, ch, err := r.store.Merge(id, msg.Entries[id], AnimationFields)
		if err != nil {
			r.log.Warnf("users_map entry %q: %v", id, err)
			continue
		}
		r.noteChange(e, ch)
	}
}

func (r *Reconciler) noteChange(e Entity, ch Change) {
	if ch.Kind == Created {
		r.log.Debugf("entity created id=%s", e.ID)
		return
	}
	if e.Dead && ch.Fields&FieldDead != 0 {
		r.log.Infof("entity died id=%s local=%t", e.ID, e.IsLocal)
		return
	}
	if e.Dead && ch.Suppressed {
		r.metrics.IncDeadSuppressed()
	}
}
