package client

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MsgType 信封中的 msg_type 字段
type MsgType string

// 入站消息类型（服务端 -> 客户端）
const (
	MsgRenderMap      MsgType = "render_map"
	MsgRegisterUser   MsgType = "register_user"
	MsgUnregisterUser MsgType = "unregister_user"
	MsgPlayerUpdate   MsgType = "player_update"
	MsgUsersMap       MsgType = "users_map"
)

// 出站消息类型（客户端 -> 服务端）；unregister_user 双向共用
const (
	MsgPlayerMove  MsgType = "player_move"
	MsgPlayerShoot MsgType = "player_shoot"
	MsgPlayerEquip MsgType = "player_equip"
)

// Envelope 线上的最小单元：每个 WebSocket 帧一个
// 示例：{"msg_type":"player_move","data":{"action":"walk","direction":"top"}}
type Envelope struct {
	Type MsgType         `json:"msg_type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EntityID 实体的会话内唯一标识。服务端以整数下发，users_map 的键则是字符串，
// 两种形式在这里统一为字符串。
type EntityID string

func (id *EntityID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntityID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("entity id: %w", err)
	}
	*id = EntityID(n.String())
	return nil
}

// MarshalJSON 规范整数形式的 id 以数字写出，其余以字符串写出
func (id EntityID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Direction 四向朝向
type Direction string

const (
	DirTop    Direction = "top"
	DirBottom Direction = "bottom"
	DirLeft   Direction = "left"
	DirRight  Direction = "right"
)

// Valid 是否为四个基本方向之一
func (d Direction) Valid() bool {
	switch d {
	case DirTop, DirBottom, DirLeft, DirRight:
		return true
	}
	return false
}

// ParseDirection 解析方向字符串，非法值返回 ErrInvalidInput
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("direction %q: %w", s, ErrInvalidInput)
	}
	return d, nil
}

// Action 动作状态
type Action string

const (
	ActionIdle  Action = "idle"
	ActionWalk  Action = "walk"
	ActionShoot Action = "shoot"
)

// Display 可见性，仅由入站消息修改
type Display string

const (
	DisplayVisible Display = "visible"
	DisplayHidden  Display = "hidden"
)

// EntityFields 实体的部分状态：nil 字段表示本次消息未携带
type EntityFields struct {
	ID        EntityID   `json:"id,omitempty"`
	Name      *string    `json:"name,omitempty"`
	X         *float64   `json:"x,omitempty"`
	Y         *float64   `json:"y,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Health    *int       `json:"health,omitempty"`
	MaxHealth *int       `json:"max_health,omitempty"`
	Armor     *string    `json:"armor,omitempty"`
	Weapon    *string    `json:"weapon,omitempty"`
	Action    *Action    `json:"action,omitempty"`
	Direction *Direction `json:"direction,omitempty"`
	Display   *Display   `json:"display,omitempty"`
	Width     *float64   `json:"width,omitempty"`
	Height    *float64   `json:"height,omitempty"`
}

// Message 解码后的领域消息
type Message interface {
	MsgType() MsgType
}

// RenderMap 棋盘尺寸
type RenderMap struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RegisterUser 本地玩家注册，载荷即实体字段（必须带 id）
type RegisterUser struct {
	EntityFields
}

// UnregisterUser 入站时携带被移除实体的 id；出站（页面/进程退出）为空载荷
type UnregisterUser struct {
	ID EntityID `json:"id,omitempty"`
}

// PlayerUpdate 本地玩家的权威状态
type PlayerUpdate struct {
	EntityFields
}

// UsersMap 其他实体的快照 id -> 字段。线上的值可能是对象也可能是 JSON 字符串，
// 解码时统一为 EntityFields；空快照解码为 nil Entries。
type UsersMap struct {
	Entries map[EntityID]EntityFields
}

// PlayerMove 移动/停止意图
type PlayerMove struct {
	Action    Action    `json:"action"`
	Direction Direction `json:"direction"`
}

// PlayerShoot 射击；Target 为空表示不指定目标
type PlayerShoot struct {
	Target EntityID `json:"cid,omitempty"`
}

// PlayerEquip 装备切换
type PlayerEquip struct {
	Equipment string `json:"equipment"`
}

// Unknown 未识别的消息类型：正常解码，交给空处理器
type Unknown struct {
	Type MsgType
	Data json.RawMessage
}

func (RenderMap) MsgType() MsgType      { return MsgRenderMap }
func (RegisterUser) MsgType() MsgType   { return MsgRegisterUser }
func (UnregisterUser) MsgType() MsgType { return MsgUnregisterUser }
func (PlayerUpdate) MsgType() MsgType   { return MsgPlayerUpdate }
func (UsersMap) MsgType() MsgType       { return MsgUsersMap }
func (PlayerMove) MsgType() MsgType     { return MsgPlayerMove }
func (PlayerShoot) MsgType() MsgType    { return MsgPlayerShoot }
func (PlayerEquip) MsgType() MsgType    { return MsgPlayerEquip }
func (u Unknown) MsgType() MsgType      { return u.Type }
