// Package serializer 缓存对象值的编解码
package serializer

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/shardis/xerrors"
)

// ErrUnsupportedSerializer 不支持的序列化器类型
var ErrUnsupportedSerializer = xerrors.WithCode(xerrors.New("serializer: unsupported type"), xerrors.CodeConfig)

// Serializer 定义序列化接口
type Serializer interface {
	Name() string
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer JSON 序列化器
type JSONSerializer struct{}

func (JSONSerializer) Name() string { return "json" }

func (JSONSerializer) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}

// MessagePackSerializer MessagePack 序列化器
type MessagePackSerializer struct{}

func (MessagePackSerializer) Name() string { return "msgpack" }

func (MessagePackSerializer) Marshal(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (MessagePackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

// New 创建序列化器，支持 "json"（默认）与 "msgpack"
func New(name string) (Serializer, error) {
	switch name {
	case "json", "":
		return JSONSerializer{}, nil
	case "msgpack":
		return MessagePackSerializer{}, nil
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedSerializer, "%q", name)
	}
}
