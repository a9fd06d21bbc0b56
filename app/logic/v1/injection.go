package v1

import (
	"context"

	"github.com/contexor/contexor/pkg/i18n"
)

const (
	LANGUAGE_KEY = "lang"
	USER_KEY     = "user_id"
)

// InjectLanguage 请求上下文中的语言，没有时使用 fallback
func InjectLanguage(ctx context.Context, fallback string) string {
	if lang, ok := ctx.Value(LANGUAGE_KEY).(string); ok && i18n.ALLOW_LANG[lang] {
		return lang
	}
	return fallback
}

// InjectUser 由网关写入的调用方用户 id
func InjectUser(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(USER_KEY).(string)
	return user, ok && user != ""
}
