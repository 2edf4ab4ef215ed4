package todo

// Result は操作の結果を表す。成功時は値を、失敗時はエラーを保持する。
type Result[T any] struct {
	value T
	err   error
}

// Ok は成功結果を生成する。
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail は失敗結果を生成する。
func Fail[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// IsOk は成功かどうかを返す。
func (r Result[T]) IsOk() bool {
	return r.err == nil
}

// Value は成功時の値を返す。失敗時はゼロ値。
func (r Result[T]) Value() T {
	return r.value
}

// Err は失敗時のエラーを返す。成功時はnil。
func (r Result[T]) Err() error {
	return r.err
}
