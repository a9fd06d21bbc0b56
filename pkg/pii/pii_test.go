package pii

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"no sensitive data here",
		"call me at 09123456789",
		"my number is +989121112233 and my mail is reza.k@example.com",
		"transfer to IR820540102680020817909002 please",
		"IR820540102680020817909002 IR820540102680020817909002 a@b.io 09351234567 a@b.io",
		"متن فارسی با شماره 09121234567 و ایمیل test@mail.ir",
	}

	for _, text := range cases {
		r := NewRedactor()
		redacted, _ := r.Redact(text)
		assert.Equal(t, text, r.Restore(redacted), "round trip of %q", text)
	}
}

func TestRedactDuplicatePhone(t *testing.T) {
	r := NewRedactor()
	redacted, warnings := r.Redact("call 09123456789 or 09123456789 again")

	require.Len(t, r.Mapping(), 1)
	var placeholder string
	for k := range r.Mapping() {
		placeholder = k
	}
	assert.True(t, strings.HasPrefix(placeholder, "[PHONE_"))
	assert.Equal(t, 2, strings.Count(redacted, placeholder))
	assert.NotContains(t, redacted, "09123456789")

	assert.Equal(t, 2, warnings.Count(CATEGORY_PHONE))
	assert.Equal(t, "Found 2 phone number(s)", warnings[CATEGORY_PHONE])
	_, ok := warnings[CATEGORY_EMAIL]
	assert.False(t, ok)
}

func TestRedactDistinctLiterals(t *testing.T) {
	r := NewRedactor()
	redacted, warnings := r.Redact("a@example.com b@example.com 09121111111")

	assert.Len(t, r.Mapping(), 3)
	assert.Equal(t, 2, warnings.Count(CATEGORY_EMAIL))
	assert.Equal(t, 1, warnings.Count(CATEGORY_PHONE))
	assert.NotContains(t, redacted, "@")
}

func TestRedactIBANBeforePhone(t *testing.T) {
	r := NewRedactor()
	redacted, warnings := r.Redact("iban IR820540102680020817909002")

	assert.Equal(t, 1, warnings.Count(CATEGORY_IBAN))
	assert.Equal(t, 0, warnings.Count(CATEGORY_PHONE))
	assert.Contains(t, redacted, "[IBAN_")
}

func TestRedactNationalIDOptIn(t *testing.T) {
	text := "national code 0012345678"

	r := NewRedactor()
	redacted, warnings := r.Redact(text)
	assert.Equal(t, text, redacted)
	assert.Nil(t, warnings)

	r = NewRedactor(WithNationalID())
	redacted, warnings = r.Redact(text)
	assert.Equal(t, "Found 1 potential national ID(s)", warnings[CATEGORY_NATIONAL_ID])
	assert.Contains(t, redacted, "[NATIONAL_ID_")
	assert.Equal(t, text, r.Restore(redacted))
}

func TestRedactEmptyInput(t *testing.T) {
	r := NewRedactor()
	redacted, warnings := r.Redact("")
	assert.Equal(t, "", redacted)
	assert.Nil(t, warnings)
	assert.Empty(t, r.Mapping())
}

func TestRestoreWithoutMapping(t *testing.T) {
	r := NewRedactor()
	assert.Equal(t, "[PHONE_deadbeef] stays", r.Restore("[PHONE_deadbeef] stays"))
}

// 同一实例上的第二次 Redact 会清空第一次的映射，第一次的结果无法再还原
func TestRedactResetsMappingBetweenCalls(t *testing.T) {
	r := NewRedactor()
	textA := "first 09121111111"
	textB := "second 09122222222"

	redactedA, _ := r.Redact(textA)
	redactedB, _ := r.Redact(textB)

	combined := redactedA + " | " + redactedB
	restored := r.Restore(combined)

	assert.NotEqual(t, textA+" | "+textB, restored)
	assert.Contains(t, restored, redactedA)
	assert.Contains(t, restored, textB)
}

func TestMaskUsesSessionMapping(t *testing.T) {
	r := NewRedactor()
	_, _ = r.Redact("topic with 09121111111\nkeywords a@b.io")

	masked := r.Mask("please call 09121111111 or mail a@b.io")
	assert.NotContains(t, masked, "09121111111")
	assert.NotContains(t, masked, "a@b.io")
	assert.Equal(t, "please call 09121111111 or mail a@b.io", r.Restore(masked))
}

func TestHasPII(t *testing.T) {
	assert.True(t, HasPII("reach me at 09121234567"))
	assert.True(t, HasPII("x@y.com"))
	assert.True(t, HasPII("IR820540102680020817909002"))
	assert.False(t, HasPII("0012345678"))
	assert.False(t, HasPII(""))
}
