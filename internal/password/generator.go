package password

import (
	"math/rand"
	"time"
)

// alphabet 是候选密码的字符表 (A-Za-z0-9)
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewSeed 根据用户名和创建时间派生一个种子。
// 用户名的字节和加上毫秒时间戳，足以让每个用户拿到互不相同的列表，
// 但并不要求密码学强度。
func NewSeed(username string, at time.Time) int64 {
	var sum int64
	for _, b := range []byte(username) {
		sum += int64(b)
	}
	return sum + at.UnixMilli()
}

// Generate 根据种子生成 count 条长度为 length 的候选密码。
// 同一个种子永远产生同一条序列，没有任何共享状态。
func Generate(seed int64, count, length int) []string {
	rng := rand.New(rand.NewSource(seed))
	passwords := make([]string, count)
	buf := make([]byte, length)
	for i := range passwords {
		for j := range buf {
			buf[j] = alphabet[rng.Intn(len(alphabet))]
		}
		passwords[i] = string(buf)
	}
	return passwords
}

// DeriveSecret 派生某个种子对应的正确密码。
// 它等价于 Generate(seed, 1, length)[0]，但不需要物化整个列表。
func DeriveSecret(seed int64, length int) string {
	rng := rand.New(rand.NewSource(seed))
	buf := make([]byte, length)
	for j := range buf {
		buf[j] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(buf)
}

// SecretOffset 计算正确密码在物化列表中的落点。
// 无符号取模与原始实现的指针宽度转换保持一致，负种子不会产生越界偏移。
func SecretOffset(seed int64, count, window int) int {
	return int(uint64(seed)%uint64(count-window)) + window
}

// PlaceSecret 对列表应用落点策略：生成器的第一条输出就是正确密码，
// 将它与 offset 处的元素交换，保证它既在列表中，又不会排在最前面。
// 返回正确密码最终所在的下标。
func PlaceSecret(passwords []string, seed int64, window int) int {
	offset := SecretOffset(seed, len(passwords), window)
	passwords[0], passwords[offset] = passwords[offset], passwords[0]
	return offset
}
