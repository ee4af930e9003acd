package client

// Key 宿主输入层上报的按键
type Key int

const (
	KeyArrowUp Key = iota + 1
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
	KeyW
	KeyS
	KeyA
	KeyD
	KeySpace
	KeyOne
)

// 每个方向的两个等价按键（方向键 + WASD），按优先级排列
var moveKeys = []struct {
	dir  Direction
	keys [2]Key
}{
	{DirTop, [2]Key{KeyArrowUp, KeyW}},
	{DirBottom, [2]Key{KeyArrowDown, KeyS}},
	{DirRight, [2]Key{KeyArrowRight, KeyD}},
	{DirLeft, [2]Key{KeyArrowLeft, KeyA}},
}

// KeyIntents 跟踪按键状态并翻译为 Commander 调用。
// 非并发安全，应在宿主的输入/游戏循环中调用。
type KeyIntents struct {
	cmd     *Commander
	pressed map[Key]bool
}

func NewKeyIntents(cmd *Commander) *KeyIntents {
	return &KeyIntents{cmd: cmd, pressed: make(map[Key]bool)}
}

// KeyDown 空格射击，1 切换武器
func (k *KeyIntents) KeyDown(key Key) error {
	k.pressed[key] = true
	switch key {
	case KeySpace:
		return k.cmd.Shoot()
	case KeyOne:
		return k.cmd.EquipWeapon("")
	}
	return nil
}

// KeyUp 松开最后一个移动键时发送 Stop
func (k *KeyIntents) KeyUp(key Key) error {
	wasMoving := k.moving()
	delete(k.pressed, key)
	if isMoveKey(key) && wasMoving && !k.moving() {
		return k.cmd.Stop()
	}
	return nil
}

// Tick 每帧调用：同一方向的两个键同时按下时不移动，否则按优先级发送一次 Move
func (k *KeyIntents) Tick() error {
	for _, mk := range moveKeys {
		if k.pressed[mk.keys[0]] && k.pressed[mk.keys[1]] {
			return nil
		}
	}
	for _, mk := range moveKeys {
		if k.pressed[mk.keys[0]] || k.pressed[mk.keys[1]] {
			return k.cmd.Move(mk.dir)
		}
	}
	return nil
}

func (k *KeyIntents) moving() bool {
	for _, mk := range moveKeys {
		if k.pressed[mk.keys[0]] || k.pressed[mk.keys[1]] {
			return true
		}
	}
	return false
}

func isMoveKey(key Key) bool {
	for _, mk := range moveKeys {
		if key == mk.keys[0] || key == mk.keys[1] {
			return true
		}
	}
	return false
}
