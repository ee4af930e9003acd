package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Decode 将一帧 JSON 文本解析为领域消息。解析失败或缺少 msg_type 时返回
// ErrMalformedMessage；未识别的类型解码为 Unknown。
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing msg_type", ErrMalformedMessage)
	}
	data := env.Data
	if len(data) == 0 || string(data) == "null" {
		data = nil
	}

	var (
		m   Message
		err error
	)
	switch env.Type {
	case MsgRenderMap:
		var p RenderMap
		err = unmarshalData(data, &p)
		m = p
	case MsgRegisterUser:
		var p RegisterUser
		err = unmarshalData(data, &p)
		if err == nil && p.ID == "" {
			err = fmt.Errorf("register_user without id")
		}
		m = p
	case MsgUnregisterUser:
		var p UnregisterUser
		err = unmarshalData(data, &p)
		m = p
	case MsgPlayerUpdate:
		var p PlayerUpdate
		err = unmarshalData(data, &p)
		m = p
	case MsgUsersMap:
		m, err = decodeUsersMap(data)
	case MsgPlayerMove:
		var p PlayerMove
		err = unmarshalData(data, &p)
		m = p
	case MsgPlayerShoot:
		var p PlayerShoot
		err = unmarshalData(data, &p)
		m = p
	case MsgPlayerEquip:
		var p PlayerEquip
		err = unmarshalData(data, &p)
		m = p
	default:
		m = Unknown{Type: env.Type, Data: data}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, env.Type, err)
	}
	return m, nil
}

// Encode 将领域消息编码为一帧 JSON 文本，与 Decode 互逆
func Encode(m Message) ([]byte, error) {
	var (
		data json.RawMessage
		err  error
	)
	switch v := m.(type) {
	case nil:
		return nil, fmt.Errorf("encode nil message: %w", ErrInvalidInput)
	case Unknown:
		data = v.Data
	case UsersMap:
		data, err = encodeUsersMap(v)
	case *UsersMap:
		data, err = encodeUsersMap(*v)
	default:
		data, err = json.Marshal(m)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.MsgType(), err)
	}
	return json.Marshal(Envelope{Type: m.MsgType(), Data: data})
}

func unmarshalData(data json.RawMessage, v any) error {
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, v)
}

// decodeUsersMap 把 {"<id>": {...} | "<json>"} 统一为 map[EntityID]EntityFields。
// 键即权威 id，会覆盖条目内部的 id 字段。
func decodeUsersMap(data json.RawMessage) (UsersMap, error) {
	var um UsersMap
	if data == nil {
		return um, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return UsersMap{}, err
	}
	for key, val := range raw {
		if key == "" {
			return UsersMap{}, fmt.Errorf("users_map: empty id")
		}
		val = bytes.TrimSpace(val)
		if len(val) > 0 && val[0] == '"' {
			var s string
			if err := json.Unmarshal(val, &s); err != nil {
				return UsersMap{}, fmt.Errorf("users_map[%s]: %w", key, err)
			}
			val = []byte(s)
		}
		var f EntityFields
		if err := json.Unmarshal(val, &f); err != nil {
			return UsersMap{}, fmt.Errorf("users_map[%s]: %w", key, err)
		}
		f.ID = EntityID(key)
		if um.Entries == nil {
			um.Entries = make(map[EntityID]EntityFields, len(raw))
		}
		um.Entries[f.ID] = f
	}
	return um, nil
}

func encodeUsersMap(um UsersMap) (json.RawMessage, error) {
	ids := make([]string, 0, len(um.Entries))
	for id := range um.Entries {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(id)
		buf.Write(k)
		buf.WriteByte(':')
		f := um.Entries[EntityID(id)]
		f.ID = EntityID(id)
		v, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
