package client

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func strp(s string) *string       { return &s }
func intp(n int) *int             { return &n }
func f64p(f float64) *float64     { return &f }
func actp(a Action) *Action       { return &a }
func dirp(d Direction) *Direction { return &d }

func TestEncodeDecodeIdentity(t *testing.T) {
	fields := EntityFields{
		ID:        "7",
		Name:      strp("hello"),
		X:         f64p(12.5),
		Y:         f64p(3),
		Health:    intp(100),
		MaxHealth: intp(100),
		Armor:     strp("enclave_power_armor"),
		Weapon:    strp("flamer"),
		Action:    actp(ActionIdle),
		Direction: dirp(DirLeft),
	}
	cases := []Message{
		RenderMap{Width: 1280, Height: 768},
		RegisterUser{EntityFields: fields},
		UnregisterUser{ID: "7"},
		UnregisterUser{},
		PlayerUpdate{EntityFields: EntityFields{Health: intp(40), X: f64p(5), Y: f64p(5)}},
		UsersMap{Entries: map[EntityID]EntityFields{
			"2": {ID: "2", Health: intp(80), Action: actp(ActionWalk)},
			"3": {ID: "3", Weapon: strp("no_weapon")},
		}},
		UsersMap{},
		PlayerMove{Action: ActionWalk, Direction: DirTop},
		PlayerShoot{},
		PlayerShoot{Target: "3"},
		PlayerEquip{Equipment: "flamer"},
		Unknown{Type: "chat", Data: json.RawMessage(`{"text":"hi"}`)},
		Unknown{Type: "ping"},
	}
	for _, m := range cases {
		raw, err := Encode(m)
		if err != nil {
			t.Fatalf("encode %#v: %v", m, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if !reflect.DeepEqual(got, m) {
			t.Errorf("round trip mismatch for %s:\n got  %#v\n want %#v", raw, got, m)
		}
	}
}

func TestDecodeUsersMapNormalizesStringValues(t *testing.T) {
	raw := []byte(`{"msg_type":"users_map","data":{
		"2":"{\"x\":10,\"y\":20,\"action\":\"walk\"}",
		"3":{"x":1,"y":2,"health":50}
	}}`)
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	um, ok := m.(UsersMap)
	if !ok {
		t.Fatalf("expected UsersMap, got %T", m)
	}
	two := um.Entries["2"]
	if two.ID != "2" || two.X == nil || *two.X != 10 || two.Action == nil || *two.Action != ActionWalk {
		t.Errorf("string entry not normalized: %+v", two)
	}
	three := um.Entries["3"]
	if three.Health == nil || *three.Health != 50 {
		t.Errorf("object entry health = %v, want 50", three.Health)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `{not json`,
		"missing msg_type":  `{"data":{}}`,
		"bad payload":       `{"msg_type":"render_map","data":{"width":"wide"}}`,
		"register no id":    `{"msg_type":"register_user","data":{"health":10}}`,
		"users_map bad val": `{"msg_type":"users_map","data":{"2":"{oops"}}`,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrMalformedMessage) {
			t.Errorf("%s: expected ErrMalformedMessage, got %v", name, err)
		}
	}
}

func TestDecodeUnknownTypeIsNotAnError(t *testing.T) {
	m, err := Decode([]byte(`{"msg_type":"weather","data":{"rain":true}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.MsgType() != "weather" {
		t.Errorf("type = %q", m.MsgType())
	}
	if _, ok := m.(Unknown); !ok {
		t.Errorf("expected Unknown, got %T", m)
	}
}

func TestEntityIDAcceptsNumbersAndStrings(t *testing.T) {
	var a, b EntityID
	if err := json.Unmarshal([]byte(`42`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`"42"`), &b); err != nil {
		t.Fatal(err)
	}
	if a != "42" || a != b {
		t.Errorf("a=%q b=%q", a, b)
	}

	out, _ := json.Marshal(EntityID("42"))
	if string(out) != `42` {
		t.Errorf("numeric id marshalled as %s", out)
	}
	out, _ = json.Marshal(EntityID("abc"))
	if string(out) != `"abc"` {
		t.Errorf("string id marshalled as %s", out)
	}
	out, _ = json.Marshal(EntityID("007"))
	if string(out) != `"007"` {
		t.Errorf("non-canonical id marshalled as %s", out)
	}
}

func TestOutboundUnregisterWireShape(t *testing.T) {
	raw, err := Encode(UnregisterUser{})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"msg_type":"unregister_user","data":{}}` {
		t.Errorf("got %s", raw)
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("top"); err != nil || d != DirTop {
		t.Errorf("top: %v %v", d, err)
	}
	if _, err := ParseDirection("up"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("up: expected ErrInvalidInput, got %v", err)
	}
}
