// Package register 收集各文件 init 阶段登记的初始化函数，在组装对象时统一执行
package register

import "sync"

// Handler 接收正在组装的对象
type Handler[T any] func(T)

var (
	mu       sync.Mutex
	handlers = make(map[any][]any)
)

// RegisterFunc 按登记顺序追加，key 通常是调用方包内的空结构体类型
func RegisterFunc[T any](key any, handler Handler[T]) {
	mu.Lock()
	handlers[key] = append(handlers[key], handler)
	mu.Unlock()
}

// ResolveFuncHandlers 只返回类型为 Handler[T] 的函数
func ResolveFuncHandlers[T any](key any) []Handler[T] {
	mu.Lock()
	defer mu.Unlock()

	var result []Handler[T]
	for _, v := range handlers[key] {
		if h, ok := v.(Handler[T]); ok {
			result = append(result, h)
		}
	}
	return result
}

// Apply 依次以 target 调用 key 下的函数，返回执行个数
func Apply[T any](key any, target T) int {
	list := ResolveFuncHandlers[T](key)
	for _, h := range list {
		h(target)
	}
	return len(list)
}
