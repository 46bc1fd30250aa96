package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构，code 与 HTTP 状态码一致。
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, msg string, data interface{}) {
	c.JSON(status, Response{
		Code: status,
		Msg:  msg,
		Data: data,
	})
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "成功", data)
}

// Created 创建成功响应（201）
func Created(c *gin.Context, data interface{}) {
	respond(c, http.StatusCreated, "创建成功", data)
}

// NoContent 操作成功（204）。204 响应不允许携带消息体，删除类接口使用。
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	respond(c, http.StatusBadRequest, msg, nil)
}

// NotFound 资源不存在（404）
func NotFound(c *gin.Context, msg string) {
	respond(c, http.StatusNotFound, msg, nil)
}

// Conflict 资源冲突（409），如邮箱地址已被占用
func Conflict(c *gin.Context, msg string) {
	respond(c, http.StatusConflict, msg, nil)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context, msg string) {
	respond(c, http.StatusInternalServerError, msg, nil)
}

// BadGateway 上游提供商不可用或出错（502）
func BadGateway(c *gin.Context, msg string) {
	respond(c, http.StatusBadGateway, msg, nil)
}
