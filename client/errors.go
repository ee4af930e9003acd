package client

import "errors"

// 同步器的错误分类：调用方使用 errors.Is 判断
var (
	// ErrConnection 建连或握手失败（只影响连接状态，不会终止进程）
	ErrConnection = errors.New("connection error")
	// ErrNotConnected 连接未处于 Open 状态时发送
	ErrNotConnected = errors.New("not connected")
	// ErrMalformedMessage 入站帧无法解析，该帧被丢弃
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownEntity 操作引用了不存在的实体 id
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrInvalidInput 调用方传入了枚举之外的值，在任何网络调用之前拒绝
	ErrInvalidInput = errors.New("invalid input")
	// ErrSendBufferFull 发送队列已满，消息被丢弃
	ErrSendBufferFull = errors.New("send buffer full")
)
