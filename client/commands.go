package client

import (
	"fmt"
	"time"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// DefaultShootCooldown 射击的客户端节流窗口
const DefaultShootCooldown = 2000 * time.Millisecond

// Sender 出站消息的去处（Session 实现：编码后交给 Transport）
type Sender interface {
	Send(m Message) error
}

// Commander 把本地输入意图转换为出站信封，并执行射击冷却。
// 冷却只是客户端节流，服务端仍然是权威。
type Commander struct {
	mu       deadlock.Mutex
	out      Sender
	store    *Store
	cooldown time.Duration
	now      func() time.Time

	lastShot      time.Time
	lastDirection Direction

	metrics *Metrics
	log     *zap.SugaredLogger
}

// NewCommander 创建命令编码器；cooldown <= 0 时使用 DefaultShootCooldown
func NewCommander(out Sender, store *Store, cooldown time.Duration, metrics *Metrics, log *zap.SugaredLogger) *Commander {
	if cooldown <= 0 {
		cooldown = DefaultShootCooldown
	}
	if metrics == nil {
		metrics = &Metrics{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Commander{
		out:      out,
		store:    store,
		cooldown: cooldown,
		now:      time.Now,
		metrics:  metrics,
		log:      log,
	}
}

// SetClock 替换时钟（测试用）
func (c *Commander) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Move 发送 player_move{action:walk}；方向非法时返回 ErrInvalidInput 且不产生网络流量
func (c *Commander) Move(dir Direction) error {
	if !dir.Valid() {
		return fmt.Errorf("move %q: %w", dir, ErrInvalidInput)
	}
	c.mu.Lock()
	c.lastDirection = dir
	c.mu.Unlock()
	return c.send(PlayerMove{Action: ActionWalk, Direction: dir})
}

// Stop 发送 player_move{action:idle}，方向沿用上一次
func (c *Commander) Stop() error {
	return c.send(PlayerMove{Action: ActionIdle, Direction: c.facing()})
}

// Shoot 发送 player_shoot；冷却期内的调用被静默丢弃
func (c *Commander) Shoot() error {
	return c.ShootAt("")
}

// ShootAt 向指定实体射击，与 Shoot 共用冷却
func (c *Commander) ShootAt(target EntityID) error {
	c.mu.Lock()
	now := c.now()
	if !c.lastShot.IsZero() && now.Sub(c.lastShot) < c.cooldown {
		c.mu.Unlock()
		c.metrics.IncShotsThrottled()
		c.log.Debugf("shoot throttled, %v left", c.cooldown-now.Sub(c.lastShot))
		return nil
	}
	// 先占用冷却，发送失败时恢复
	prev := c.lastShot
	c.lastShot = now
	c.mu.Unlock()

	if err := c.send(PlayerShoot{Target: target}); err != nil {
		c.mu.Lock()
		if c.lastShot.Equal(now) {
			c.lastShot = prev
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// EquipWeapon 发送 player_equip；weapon 为空时使用当前装备的武器
func (c *Commander) EquipWeapon(weapon string) error {
	if weapon == "" {
		local, ok := c.localEntity()
		if !ok || local.Weapon == "" {
			return fmt.Errorf("equip: no weapon given and none equipped: %w", ErrInvalidInput)
		}
		weapon = local.Weapon
	}
	return c.send(PlayerEquip{Equipment: weapon})
}

// facing 上一次移动方向；从未移动时取本地实体的朝向，再退回到 left
func (c *Commander) facing() Direction {
	c.mu.Lock()
	dir := c.lastDirection
	c.mu.Unlock()
	if dir != "" {
		return dir
	}
	if local, ok := c.localEntity(); ok && local.Direction.Valid() {
		return local.Direction
	}
	return DirLeft
}

func (c *Commander) localEntity() (Entity, bool) {
	if c.store == nil {
		return Entity{}, false
	}
	return c.store.Local()
}

func (c *Commander) send(m Message) error {
	if err := c.out.Send(m); err != nil {
		c.log.Warnf("send %s failed: %v", m.MsgType(), err)
		return err
	}
	return nil
}
