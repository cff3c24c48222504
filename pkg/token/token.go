package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// 注册票据：管理员用注册密钥为某个用户名预先签发一张票据，
// 玩家在创建用户时带上它。密钥留空时注册完全开放。

// registrationKey 是服务器启动时从配置加载的HMAC密钥。
var registrationKey []byte

// ConfigureRegistrationKey 设置注册票据的HMAC密钥。
// 传入空字符串表示不启用注册门禁。
func ConfigureRegistrationKey(key string) {
	if key == "" {
		registrationKey = nil
		return
	}
	registrationKey = []byte(key)
}

// RegistrationRequired 返回当前实例是否要求注册票据。
func RegistrationRequired() bool {
	return len(registrationKey) > 0
}

// GenerateTicket 为一个用户名签发注册票据。
// 返回的是HMAC-SHA256签名的Base64编码字符串。
func GenerateTicket(username string) string {
	mac := hmac.New(sha256.New, registrationKey)
	mac.Write([]byte(username))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateTicket 验证一个用户名和票据是否匹配。
// 未启用注册门禁时任何票据（包括空票据）都有效。
func ValidateTicket(username, ticketB64 string) bool {
	if !RegistrationRequired() {
		return true
	}

	expected := hmac.New(sha256.New, registrationKey)
	expected.Write([]byte(username))

	actual, err := base64.RawURLEncoding.DecodeString(ticketB64)
	if err != nil {
		return false // 票据解码失败
	}

	// 使用 hmac.Equal 进行时间恒定的比较，防止时序攻击
	return hmac.Equal(expected.Sum(nil), actual)
}
