package persona

import "strings"

// Field 描述目标页面上一个可输入元素的识别特征。
type Field struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	AriaLabel   string `json:"ariaLabel"`
	Placeholder string `json:"placeholder"`
	Type        string `json:"type"`
	Disabled    bool   `json:"disabled"`
	ReadOnly    bool   `json:"readOnly"`
	Hidden      bool   `json:"hidden"`
}

// label 取第一个非空的识别属性并转小写，和注入脚本里的取值顺序一致。
func (f Field) label() string {
	for _, candidate := range []string{f.Name, f.ID, f.AriaLabel, f.Placeholder} {
		if candidate != "" {
			return strings.ToLower(candidate)
		}
	}
	return ""
}

// Values 是分类器可分发的全部身份字段值。
type Values struct {
	Email     string
	Phone     string
	Password  string
	Username  string
	FullName  string
	FirstName string
	LastName  string
	Address   string
	BirthDate string
}

// Classify 按优先级级联把一个表单元素映射到身份字段值。
//
// 规则自上而下第一条命中即返回，高置信度的信号（email 类型、password 类型）
// 先于宽泛的信号（name）判断，避免 username 这类标签被误判成姓名。
// 关键词覆盖英文和土耳其文。隐藏、禁用、只读的元素一律不填，返回 false。
func Classify(f Field, v Values) (string, bool) {
	if f.Hidden || f.Disabled || f.ReadOnly {
		return "", false
	}

	n := f.label()
	t := strings.ToLower(f.Type)
	has := func(tokens ...string) bool {
		for _, token := range tokens {
			if strings.Contains(n, token) {
				return true
			}
		}
		return false
	}

	switch {
	case t == "email" || has("mail", "eposta", "e-posta"):
		return v.Email, true
	case has("mobile", "phone", "number", "tel", "cep", "telefon"):
		return v.Phone, true
	case t == "password" || has("password", "pass", "sifre", "parola"):
		return v.Password, true
	case has("username", "login", "kullanici", "nick"),
		strings.Contains(n, "user") && !strings.Contains(n, "name"):
		return v.Username, true
	case has("fullname", "adsoyad"),
		strings.Contains(n, "name") && !strings.Contains(n, "first") && !strings.Contains(n, "last"):
		return v.FullName, true
	case has("first", "isim"):
		return v.FirstName, true
	case has("last", "soyad"):
		return v.LastName, true
	case has("address", "street", "location", "adres"):
		return v.Address, true
	case t == "date" || has("birth", "dob", "dogum"):
		return v.BirthDate, true
	}
	return "", false
}
