package errors

// 服务代码 (AA)
const (
	ServiceCommon = 0
	ServiceTicket = 21
)

// 类别代码 (BB)
const (
	CategorySuccess   = 0
	CategoryRequest   = 1  // 400
	CategoryResource  = 4  // 404
	CategoryConflict  = 5  // 409
	CategoryInternal  = 7  // 500
	CategoryDatabase  = 8  // 500
	CategoryNetwork   = 10 // 502/503
	CategoryTimeout   = 11 // 504
	CategoryConfig    = 12 // 500
	categoryClientMax = 6
)

// MakeCode composes an AABBCCC code.
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode splits an AABBCCC code.
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

func GetCategory(code int) int {
	return (code % 100000) / 1000
}

// IsClientError reports whether the code falls in a 4xx category.
func IsClientError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryRequest && c <= categoryClientMax
}
