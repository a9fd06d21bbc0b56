package utils

import (
	"github.com/abadojack/whatlanggo"
)

var whatLangOpts = whatlanggo.Options{
	Whitelist: map[whatlanggo.Lang]bool{
		whatlanggo.Eng: true,
		whatlanggo.Pes: true,
		whatlanggo.Arb: true,
	},
}

func WhatLang(query string) string {
	info := whatlanggo.DetectWithOptions(query, whatLangOpts)
	return info.Lang.String()
}

// IsPersian 波斯语与阿拉伯语共享字母表，都按波斯语处理
func IsPersian(text string) bool {
	info := whatlanggo.DetectWithOptions(text, whatLangOpts)
	return info.Lang == whatlanggo.Pes || info.Lang == whatlanggo.Arb
}
