package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid   = errors.New("参数错误")
	ErrAuthFailed     = errors.New("鉴权失败")
	ErrNotGroupMember = errors.New("不是群成员")
	ErrBindFailed     = errors.New("绑定用户失败")
	UnauthorizedError = errors.New("权限不足")
	UnExpectedError   = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:   BadRequest,
	ErrAuthFailed:     Unauthorized,
	ErrNotGroupMember: Unauthorized,
	ErrBindFailed:     Unauthorized,
	UnauthorizedError: Unauthorized,
	UnExpectedError:   InternalServerError,
}
