// Package journal 把入站帧记录为 msgpack 流，便于离线回放一次会话
package journal

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Record 一个收到的帧
type Record struct {
	At    int64  `msgpack:"at"` // unix 纳秒
	Frame []byte `msgpack:"frame"`
}

// Time 接收时间
func (r Record) Time() time.Time { return time.Unix(0, r.At) }

// Writer 追加写记录，非并发安全（只在应用消息的协程上调用）
type Writer struct {
	enc *msgpack.Encoder
	now func() time.Time
	n   int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: msgpack.NewEncoder(w), now: time.Now}
}

// Record 写入一帧并打上当前时间
func (w *Writer) Record(frame []byte) error {
	rec := Record{At: w.now().UnixNano(), Frame: frame}
	if err := w.enc.Encode(&rec); err != nil {
		return fmt.Errorf("journal: write record %d: %w", w.n, err)
	}
	w.n++
	return nil
}

// Count 已写入的记录数
func (w *Writer) Count() int { return w.n }

// Reader 按顺序读回记录
type Reader struct {
	dec *msgpack.Decoder
	n   int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: msgpack.NewDecoder(r)}
}

// Next 返回下一条记录，流结束时返回 io.EOF
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("journal: read record %d: %w", r.n, err)
	}
	r.n++
	return rec, nil
}

// Replay 按顺序把每条记录交给 apply。apply 的错误计数后跳过；流损坏则停止回放。
func Replay(r io.Reader, apply func(frame []byte) error) (applied, failed int, err error) {
	rd := NewReader(r)
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return applied, failed, nil
		}
		if err != nil {
			return applied, failed, err
		}
		if err := apply(rec.Frame); err != nil {
			failed++
			continue
		}
		applied++
	}
}
