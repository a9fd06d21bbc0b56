package ai

import (
	"strconv"
	"strings"
)

const (
	DEFAULT_TONE      = "حرفه‌ای"
	DEFAULT_AUDIENCE  = "عمومی"
	DEFAULT_MIN_WORDS = 500
)

const SYSTEM_PROMPT_FA = "شما یک نویسنده فارسی‌زبان حرفه‌ای هستید که در تولید محتوای باکیفیت تخصص دارید."

const SYSTEM_PROMPT_EN = "You are a professional writer who specializes in producing high quality content."

// PROMPT_BLOG_DRAFT_FA 默认的波斯语博客草稿模板
const PROMPT_BLOG_DRAFT_FA = `شما یک نویسنده فارسی‌زبان حرفه‌ای هستید که در تولید محتوای وبلاگ با کیفیت بالا تخصص دارید.

وظیفه شما نوشتن یک مقاله وبلاگ کامل و جذاب به زبان فارسی است که:

**موضوع:** {topic}
**لحن:** {tone}
**مخاطب:** {audience}
**حداقل تعداد کلمات:** {min_words}
**کلمات کلیدی:** {keywords}

**الزامات:**
1. مقدمه جذاب که توجه خواننده را جلب کند
2. حداقل 3 بخش اصلی با عناوین H2 مناسب
3. استفاده از زیرعناوین H3 در صورت نیاز
4. محتوا باید ساختاریافته و خوانا باشد
5. جمع‌بندی قوی با فراخوان به اقدام (CTA)
6. یک متادیسکریپشن فارسی 150-160 کاراکتری در انتها

**قالب خروجی (Markdown):**

# عنوان اصلی

مقدمه

## بخش اول

## بخش دوم

## بخش سوم

## نتیجه‌گیری

---

**متادیسکریپشن:** ...

**نکات مهم:**
- از زبان فارسی استاندارد و روان استفاده کنید
- محتوا باید SEO-friendly باشد
- از کلمات کلیدی به صورت طبیعی استفاده کنید
- محتوا باید ارزش‌آفرین و مفید باشد
- راست‌چین (RTL) بنویسید
`

const PROMPT_ADDITIONAL_INSTRUCTIONS_FA = "\n\n**دستورالعمل‌های اضافی:**\n"

// PromptVars 填充模板的字段，调用方应先完成脱敏
type PromptVars struct {
	Topic                  string
	Tone                   string
	Audience               string
	Keywords               string
	MinWords               int
	AdditionalInstructions string
}

func (v *PromptVars) applyDefaults() {
	if v.Tone == "" {
		v.Tone = DEFAULT_TONE
	}
	if v.Audience == "" {
		v.Audience = DEFAULT_AUDIENCE
	}
	if v.MinWords <= 0 {
		v.MinWords = DEFAULT_MIN_WORDS
	}
}

// BuildDraftPrompt draft 使用完整模板
func BuildDraftPrompt(v PromptVars) string {
	v.applyDefaults()
	prompt := strings.NewReplacer(
		"{topic}", v.Topic,
		"{tone}", v.Tone,
		"{audience}", v.Audience,
		"{min_words}", strconv.Itoa(v.MinWords),
		"{keywords}", v.Keywords,
	).Replace(PROMPT_BLOG_DRAFT_FA)

	if v.AdditionalInstructions != "" {
		prompt += PROMPT_ADDITIONAL_INSTRUCTIONS_FA + v.AdditionalInstructions
	}
	return prompt
}

// BuildShortPrompt outline / rewrite / caption 使用简短模板
func BuildShortPrompt(v PromptVars) string {
	v.applyDefaults()
	var b strings.Builder
	b.WriteString("موضوع: " + v.Topic)
	b.WriteString("\nلحن: " + v.Tone)
	b.WriteString("\nمخاطب: " + v.Audience)
	b.WriteString("\nکلمات کلیدی: " + v.Keywords)
	if v.AdditionalInstructions != "" {
		b.WriteString("\n\n" + v.AdditionalInstructions)
	}
	return b.String()
}

// SystemPrompt 按主题语言选择系统提示词，识别不出时使用波斯语
func SystemPrompt(lang string) string {
	if lang == MODEL_BASE_LANGUAGE_EN {
		return SYSTEM_PROMPT_EN
	}
	return SYSTEM_PROMPT_FA
}

const (
	MODEL_BASE_LANGUAGE_FA = "Persian"
	MODEL_BASE_LANGUAGE_EN = "English"
)
