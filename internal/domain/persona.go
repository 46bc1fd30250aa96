package domain

import "strings"

// Persona 表示本地生成的虚拟身份。
// 只存在于内存中，绝不持久化；仅在用户显式触发注入时离开本进程。
type Persona struct {
	FullName  string `json:"fullName"`
	Password  string `json:"password"`
	Address   string `json:"address"`
	BirthDate string `json:"birthDate"` // YYYY-MM-DD
}

// FirstName 返回全名的第一个词。
func (p Persona) FirstName() string {
	parts := strings.Fields(p.FullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName 返回全名的第二个词。
func (p Persona) LastName() string {
	parts := strings.Fields(p.FullName)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
