package client

import "fmt"

// Entity 客户端已知的任意角色（本地或远端），权威状态来自服务端
type Entity struct {
	ID        EntityID  `json:"id"`
	Name      string    `json:"name,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Speed     float64   `json:"speed,omitempty"`
	Health    int       `json:"health"`
	MaxHealth int       `json:"maxHealth"`
	Armor     string    `json:"armor,omitempty"`
	Weapon    string    `json:"weapon,omitempty"`
	Action    Action    `json:"action,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Display   Display   `json:"display"`
	Width     float64   `json:"width,omitempty"`
	Height    float64   `json:"height,omitempty"`
	IsLocal   bool      `json:"isLocal"`
	Dead      bool      `json:"dead"`
}

// FieldMask 标记一次合并中实际发生变化的字段
type FieldMask uint32

const (
	FieldName FieldMask = 1 << iota
	FieldPosition
	FieldSpeed
	FieldHealth
	FieldMaxHealth
	FieldArmor
	FieldWeapon
	FieldAction
	FieldDirection
	FieldDisplay
	FieldSize
	FieldLocal
	FieldDead
)

const (
	// AnimationFields 会导致动画重启的字段
	AnimationFields = FieldAction | FieldDirection | FieldArmor | FieldWeapon
	AllFields       = FieldMask(1<<13 - 1)
)

// ChangeKind 变更通知的类别
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Updated
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change 一次变更的结果。Suppressed 表示记录已写入但没有发出通知
// （实体已死亡，或变化的字段不在通知范围内）。
type Change struct {
	ID         EntityID
	Kind       ChangeKind
	Fields     FieldMask
	Suppressed bool
}

func newEntity(id EntityID) *Entity {
	return &Entity{ID: id, Display: DisplayVisible}
}

// merge 将部分字段合入实体，返回发生变化的字段。
// 死亡实体只记录生命值；本次合并导致死亡时，其余字段被忽略。
func (e *Entity) merge(f EntityFields) FieldMask {
	var changed FieldMask

	if f.MaxHealth != nil && *f.MaxHealth >= 0 && *f.MaxHealth != e.MaxHealth {
		e.MaxHealth = *f.MaxHealth
		changed |= FieldMaxHealth
	}
	if f.Health != nil {
		h := *f.Health
		if h < 0 {
			h = 0
		}
		if h != e.Health {
			e.Health = h
			changed |= FieldHealth
		}
		// 0 <= health <= maxHealth；未知上限时以首次生命值为满值
		if e.MaxHealth < e.Health {
			e.MaxHealth = e.Health
			changed |= FieldMaxHealth
		}
		if e.Dead {
			return changed
		}
		if *f.Health <= 0 {
			e.Dead = true
			return changed | FieldDead
		}
	} else if e.Health > e.MaxHealth {
		// 上限被调低：生命值跟随下调，上限降到 0 视为死亡
		e.Health = e.MaxHealth
		changed |= FieldHealth
		if e.Health == 0 && !e.Dead {
			e.Dead = true
			return changed | FieldDead
		}
	}
	if e.Dead {
		return changed
	}

	if f.Name != nil && *f.Name != e.Name {
		e.Name = *f.Name
		changed |= FieldName
	}
	if f.X != nil && *f.X != e.X {
		e.X = *f.X
		changed |= FieldPosition
	}
	if f.Y != nil && *f.Y != e.Y {
		e.Y = *f.Y
		changed |= FieldPosition
	}
	if f.Speed != nil && *f.Speed != e.Speed {
		e.Speed = *f.Speed
		changed |= FieldSpeed
	}
	if f.Armor != nil && *f.Armor != e.Armor {
		e.Armor = *f.Armor
		changed |= FieldArmor
	}
	if f.Weapon != nil && *f.Weapon != e.Weapon {
		e.Weapon = *f.Weapon
		changed |= FieldWeapon
	}
	if f.Action != nil && *f.Action != e.Action {
		e.Action = *f.Action
		changed |= FieldAction
	}
	if f.Direction != nil && *f.Direction != e.Direction {
		e.Direction = *f.Direction
		changed |= FieldDirection
	}
	if f.Display != nil && *f.Display != e.Display {
		e.Display = *f.Display
		changed |= FieldDisplay
	}
	if f.Width != nil && *f.Width != e.Width {
		e.Width = *f.Width
		changed |= FieldSize
	}
	if f.Height != nil && *f.Height != e.Height {
		e.Height = *f.Height
		changed |= FieldSize
	}
	return changed
}
