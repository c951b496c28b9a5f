package auth

// 角色常量
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor 发起本次操作的会话主体（显式传入每个引擎调用，引擎不持有全局会话态）。
// 角色校验的第一道关卡在上层鉴权中间件，引擎内部只做最后防线。
type Actor struct {
	ID    string
	Roles []string
}

// IsAdmin 是否具备管理员角色
func (a Actor) IsAdmin() bool {
	for _, r := range a.Roles {
		if r == RoleAdmin {
			return true
		}
	}
	return false
}
