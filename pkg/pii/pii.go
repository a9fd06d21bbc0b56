package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	CATEGORY_PHONE       = "phone"
	CATEGORY_EMAIL       = "email"
	CATEGORY_IBAN        = "iban"
	CATEGORY_NATIONAL_ID = "national_id"
)

var (
	PhoneRegexp      = regexp.MustCompile(`(?:\+?98|0)?9\d{9}`)
	EmailRegexp      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	IBANRegexp       = regexp.MustCompile(`\bIR[0-9]{24}\b`)
	NationalIDRegexp = regexp.MustCompile(`\b\d{10}\b`)
)

type detector struct {
	category string
	tag      string
	re       *regexp.Regexp
	message  func(n int) string
}

// 顺序即匹配顺序：IBAN 内含类似手机号的数字串，必须先于手机号替换
var detectors = []detector{
	{CATEGORY_IBAN, "IBAN", IBANRegexp, func(n int) string { return fmt.Sprintf("Found %d IBAN(s)", n) }},
	{CATEGORY_EMAIL, "EMAIL", EmailRegexp, func(n int) string { return fmt.Sprintf("Found %d email address(es)", n) }},
	{CATEGORY_PHONE, "PHONE", PhoneRegexp, func(n int) string { return fmt.Sprintf("Found %d phone number(s)", n) }},
	{CATEGORY_NATIONAL_ID, "NATIONAL_ID", NationalIDRegexp, func(n int) string { return fmt.Sprintf("Found %d potential national ID(s)", n) }},
}

// Warnings 类别 -> 命中提示，没有命中的类别不出现
type Warnings map[string]string

// Count 解析提示中的命中次数
func (w Warnings) Count(category string) int {
	msg, ok := w[category]
	if !ok {
		return 0
	}
	var n int
	fmt.Sscanf(msg, "Found %d", &n)
	return n
}

type Option func(r *Redactor)

// WithNationalID 开启 10 位身份证号识别，默认关闭以避免误判
func WithNationalID() Option {
	return func(r *Redactor) {
		r.nationalID = true
	}
}

// Redactor 一次请求/响应周期内使用的脱敏器。
// 每次 Redact 都会清空上一次的映射，Restore 只认最近一次 Redact 的结果，
// 不要在不相关的文本之间复用同一个实例。
// 占位符后缀为 8 位随机十六进制，不保证全局唯一，碰撞概率可以忽略。
type Redactor struct {
	nationalID bool
	forward    map[string]string // 原文 -> 占位符
	reverse    map[string]string // 占位符 -> 原文
}

func NewRedactor(opts ...Option) *Redactor {
	r := &Redactor{}
	for _, opt := range opts {
		opt(r)
	}
	r.reset()
	return r
}

func (r *Redactor) reset() {
	r.forward = make(map[string]string)
	r.reverse = make(map[string]string)
}

func (r *Redactor) placeholder(tag, literal string) string {
	if p, ok := r.forward[literal]; ok {
		return p
	}
	p := fmt.Sprintf("[%s_%s]", tag, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	r.forward[literal] = p
	r.reverse[p] = literal
	return p
}

// Redact 替换文本中的敏感信息，返回替换后的文本与命中提示
func (r *Redactor) Redact(text string) (string, Warnings) {
	r.reset()
	if text == "" {
		return text, nil
	}

	var warnings Warnings
	for _, d := range detectors {
		if d.category == CATEGORY_NATIONAL_ID && !r.nationalID {
			continue
		}
		matches := d.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		text = d.re.ReplaceAllStringFunc(text, func(literal string) string {
			return r.placeholder(d.tag, literal)
		})
		if warnings == nil {
			warnings = make(Warnings)
		}
		warnings[d.category] = d.message(len(matches))
	}
	return text, warnings
}

// Mask 用当前映射替换文本中已知的敏感原文，不重置映射
func (r *Redactor) Mask(text string) string {
	if text == "" || len(r.forward) == 0 {
		return text
	}
	literals := make([]string, 0, len(r.forward))
	for k := range r.forward {
		literals = append(literals, k)
	}
	// 长串优先，避免短串先替换破坏长串
	sort.Slice(literals, func(i, j int) bool { return len(literals[i]) > len(literals[j]) })
	for _, literal := range literals {
		text = strings.ReplaceAll(text, literal, r.forward[literal])
	}
	return text
}

// Restore 将占位符还原为原文，没有映射时原样返回
func (r *Redactor) Restore(text string) string {
	if text == "" || len(r.reverse) == 0 {
		return text
	}
	for placeholder, literal := range r.reverse {
		text = strings.ReplaceAll(text, placeholder, literal)
	}
	return text
}

// Mapping 占位符 -> 原文 的副本
func (r *Redactor) Mapping() map[string]string {
	res := make(map[string]string, len(r.reverse))
	for k, v := range r.reverse {
		res[k] = v
	}
	return res
}

// HasPII 是否包含手机号、邮箱或 IBAN
func HasPII(text string) bool {
	if text == "" {
		return false
	}
	return PhoneRegexp.MatchString(text) || EmailRegexp.MatchString(text) || IBANRegexp.MatchString(text)
}
