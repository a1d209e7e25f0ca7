package httpapi

// Result 与门户前端的响应拦截器保持一致
// - code: 2000 成功
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// TokenExpired 使用 code=60401 + HTTP 401（前端拦截器会跳回登录页）
	ResultTokenExpired = 60401
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}

func TokenExpired() Result[any] {
	return Result[any]{Code: ResultTokenExpired, Type: "error", Message: "token expired", Result: nil}
}
