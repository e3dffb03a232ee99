package service

import "fmt"

// Availability 可选协作者的显式可用性：要么持有客户端，要么给出不可用原因
type Availability[T any] struct {
	value  T
	ok     bool
	reason string
}

// Available 构造可用结果
func Available[T any](v T) Availability[T] {
	return Availability[T]{value: v, ok: true}
}

// Unavailable 构造不可用结果
func Unavailable[T any](reason string) Availability[T] {
	return Availability[T]{reason: reason}
}

// Get 返回客户端与是否可用
func (a Availability[T]) Get() (T, bool) {
	return a.value, a.ok
}

func (a Availability[T]) OK() bool { return a.ok }

// Reason 不可用原因
func (a Availability[T]) Reason() string {
	if a.ok {
		return ""
	}
	if a.reason == "" {
		return "not configured"
	}
	return a.reason
}

func (a Availability[T]) String() string {
	if a.ok {
		return "available"
	}
	return fmt.Sprintf("unavailable: %s", a.Reason())
}

// Map 把可用结果中的客户端转换为另一类型，不可用原因原样保留
func Map[T, U any](a Availability[T], f func(T) U) Availability[U] {
	if v, ok := a.Get(); ok {
		return Available(f(v))
	}
	return Unavailable[U](a.Reason())
}
