package models

// 调用者角色
const (
	RoleElderly   = "elderly"
	RoleVolunteer = "volunteer"
)

// Session 当前调用者身份，由请求头注入，不落库。
// 所有写操作都必须带上它，没有任何全局的"当前用户"。
type Session struct {
	UserID  uint   `json:"userId"`
	Role    string `json:"role"` // elderly | volunteer
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

func (s Session) Valid() bool {
	return s.UserID != 0 && (s.Role == RoleElderly || s.Role == RoleVolunteer)
}

func (s Session) IsVolunteer() bool {
	return s.Role == RoleVolunteer
}

func (s Session) IsElderly() bool {
	return s.Role == RoleElderly
}
