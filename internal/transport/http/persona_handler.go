package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nexusmail/agent/internal/domain"
	"nexusmail/agent/internal/persona"
)

// generatePersona 生成一份新的虚拟身份。
func (h *Handler) generatePersona(c *gin.Context) {
	Success(c, h.personas.Generate())
}

type scriptRequest struct {
	Persona *domain.Persona `json:"persona"`
	Email   string          `json:"email"`
}

// personaScript 生成表单注入脚本。
//
// 身份缺省时现场生成；邮箱缺省时优先用当前激活邮箱的地址。
func (h *Handler) personaScript(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	p := domain.Persona{}
	if req.Persona != nil {
		p = *req.Persona
	}
	if p.FullName == "" {
		p = h.personas.Generate()
	}

	email := req.Email
	if email == "" {
		if active := h.activeMailbox(); active != nil {
			email = active.Address
		}
	}

	script, err := h.personas.AutofillScript(p, email)
	if err != nil {
		h.log.Error("生成注入脚本失败", zap.Error(err))
		InternalError(c, MsgScriptBuildFailed)
		return
	}

	Success(c, gin.H{
		"persona": p,
		"email":   email,
		"script":  script,
	})
}

type classifyRequest struct {
	Persona *domain.Persona `json:"persona"`
	Email   string          `json:"email"`
	Fields  []persona.Field `json:"fields" binding:"required"`
}

type classifiedField struct {
	persona.Field
	Value   string `json:"value,omitempty"`
	Matched bool   `json:"matched"`
}

// classifyFields 对一组表单元素执行分类级联，返回每个元素应填的值。
// 浏览器侧注入用脚本，这个端点给调试和自动化用。
func (h *Handler) classifyFields(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	p := domain.Persona{}
	if req.Persona != nil {
		p = *req.Persona
	}
	if p.FullName == "" {
		p = h.personas.Generate()
	}

	email := req.Email
	if email == "" {
		if active := h.activeMailbox(); active != nil {
			email = active.Address
		}
	}

	values := persona.Values{
		Email:     email,
		Phone:     h.personas.Phone(),
		Password:  p.Password,
		Username:  h.personas.Username(p),
		FullName:  p.FullName,
		FirstName: p.FirstName(),
		LastName:  p.LastName(),
		Address:   p.Address,
		BirthDate: p.BirthDate,
	}

	results := make([]classifiedField, 0, len(req.Fields))
	matched := 0
	for _, f := range req.Fields {
		value, ok := persona.Classify(f, values)
		if ok {
			matched++
		}
		results = append(results, classifiedField{Field: f, Value: value, Matched: ok})
	}

	Success(c, gin.H{
		"persona": p,
		"fields":  results,
		"matched": matched,
	})
}
