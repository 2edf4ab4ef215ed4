package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"regexp"
	"strings"
)

const (
	// MinPasswordLength はパスワードの最小文字数。
	MinPasswordLength = 8
	// maxPasswordBytes はbcryptが扱える最大バイト数。
	maxPasswordBytes = 72

	minUsernameLength = 3
	maxUsernameLength = 32
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,32}$`)

// ValidUsername はユーザー名が3〜32文字の英数字と「._-」のみで構成されているかを返す。
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidEmail はメールアドレスとして解釈できるかを返す。表示名付きの形式は受け付けない。
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && addr.Name == ""
}

// ValidPassword はパスワードの長さが要件を満たすかを返す。
func ValidPassword(password string) bool {
	return len([]rune(password)) >= MinPasswordLength && len(password) <= maxPasswordBytes
}

// usernameFromEmail はGoogleアカウントのメールアドレスからユーザー名の候補を作る。
// 使用できない文字は取り除き、短すぎる場合は"user"を補う。
func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) < minUsernameLength {
		name = "user" + name
	}
	// 衝突時に付与するサフィックス分の余地を残す
	if len(name) > maxUsernameLength-5 {
		name = name[:maxUsernameLength-5]
	}
	return name
}

// withRandomSuffix はユーザー名の衝突を避けるためにランダムな接尾辞を付ける。
func withRandomSuffix(name string) (string, error) {
	b := make([]byte, 2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return name + "-" + hex.EncodeToString(b), nil
}
