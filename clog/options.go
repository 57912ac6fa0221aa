package clog

import "bytes"

// ContextField 从 Context 中提取字段的规则
type ContextField struct {
	Key       any
	FieldName string
}

// Option 函数式选项
type Option func(*options)

type options struct {
	namespaceParts []string
	contextFields  []ContextField
	buffer         *bytes.Buffer
}

// WithNamespace 设置命名空间，多级之间以 "." 连接
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 从 ctx.Value(key) 提取字段，以 fieldName 写入日志
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{Key: key, FieldName: fieldName})
	}
}

// WithBuffer 将日志写入 buf，需要配合 Output: "buffer" 使用，主要用于测试
func WithBuffer(buf *bytes.Buffer) Option {
	return func(o *options) {
		o.buffer = buf
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
