package service

import (
	"Courier/internal/pkg/security"
	"fmt"
	"strconv"
)

// AuthService 身份解析：把外部签发的 token 换成用户ID。
// 解析失败对连接是致命的，不做重试。
type AuthService interface {
	Resolve(token string) (string, error)
}

type authServiceImpl struct{}

func NewAuthService() AuthService {
	return &authServiceImpl{}
}

func (s *authServiceImpl) Resolve(token string) (string, error) {
	claims, err := security.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return strconv.FormatUint(claims.UserID, 10), nil
}
