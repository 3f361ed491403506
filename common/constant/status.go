package constant

// account role
const (
	RoleUser   = 1 // 普通用户
	RoleDealer = 2 // 庄家（管理名下用户）
	RoleAdmin  = 3 // 平台管理员
)

// account status
const (
	StatusNormal  = 1 // 状态：正常
	StatusDeleted = 2 // 状态：已删除
)

// RoleDesc 角色数值与字符串的映射
var RoleDesc = map[int8]string{
	RoleUser:   "user",
	RoleDealer: "dealer",
	RoleAdmin:  "admin",
}

// RoleCode 字符串角色转数值（未知返回 0）
func RoleCode(s string) int8 {
	switch s {
	case "user":
		return RoleUser
	case "dealer":
		return RoleDealer
	case "admin":
		return RoleAdmin
	}
	return 0
}
