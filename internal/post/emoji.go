package post

import "unicode"

// emojiTable は絵文字として許可するコードポイントの範囲テーブル。
// Unicodeの絵文字ブロック（Emoticons、Misc Symbols and Pictographs、
// Transport and Map、Supplemental Symbols等）に加え、絵文字シーケンスの
// 構成に必要なZWJ・異体字セレクタ・スキントーン・地域指標を含む。
var emojiTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1}, // Zero Width Joiner
		{Lo: 0x20e3, Hi: 0x20e3, Stride: 1}, // Combining Enclosing Keycap
		{Lo: 0x2139, Hi: 0x2139, Stride: 1},
		{Lo: 0x2194, Hi: 0x2199, Stride: 1},
		{Lo: 0x21a9, Hi: 0x21aa, Stride: 1},
		{Lo: 0x231a, Hi: 0x231b, Stride: 1},
		{Lo: 0x2328, Hi: 0x2328, Stride: 1},
		{Lo: 0x23cf, Hi: 0x23cf, Stride: 1},
		{Lo: 0x23e9, Hi: 0x23f3, Stride: 1},
		{Lo: 0x23f8, Hi: 0x23fa, Stride: 1},
		{Lo: 0x24c2, Hi: 0x24c2, Stride: 1},
		{Lo: 0x25aa, Hi: 0x25ab, Stride: 1},
		{Lo: 0x25b6, Hi: 0x25b6, Stride: 1},
		{Lo: 0x25c0, Hi: 0x25c0, Stride: 1},
		{Lo: 0x25fb, Hi: 0x25fe, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1}, // Misc Symbols, Dingbats
		{Lo: 0x2934, Hi: 0x2935, Stride: 1},
		{Lo: 0x2b05, Hi: 0x2b07, Stride: 1},
		{Lo: 0x2b1b, Hi: 0x2b1c, Stride: 1},
		{Lo: 0x2b50, Hi: 0x2b50, Stride: 1},
		{Lo: 0x2b55, Hi: 0x2b55, Stride: 1},
		{Lo: 0x3030, Hi: 0x3030, Stride: 1},
		{Lo: 0x303d, Hi: 0x303d, Stride: 1},
		{Lo: 0x3297, Hi: 0x3297, Stride: 1},
		{Lo: 0x3299, Hi: 0x3299, Stride: 1},
		{Lo: 0xfe0e, Hi: 0xfe0f, Stride: 1}, // Variation Selectors
	},
	R32: []unicode.Range32{
		{Lo: 0x1f000, Hi: 0x1f0ff, Stride: 1}, // Mahjong, Dominoes, Playing Cards
		{Lo: 0x1f170, Hi: 0x1f171, Stride: 1},
		{Lo: 0x1f17e, Hi: 0x1f17f, Stride: 1},
		{Lo: 0x1f18e, Hi: 0x1f18e, Stride: 1},
		{Lo: 0x1f191, Hi: 0x1f19a, Stride: 1},
		{Lo: 0x1f1e6, Hi: 0x1f1ff, Stride: 1}, // Regional Indicators
		{Lo: 0x1f201, Hi: 0x1f202, Stride: 1},
		{Lo: 0x1f21a, Hi: 0x1f21a, Stride: 1},
		{Lo: 0x1f22f, Hi: 0x1f22f, Stride: 1},
		{Lo: 0x1f232, Hi: 0x1f23a, Stride: 1},
		{Lo: 0x1f250, Hi: 0x1f251, Stride: 1},
		{Lo: 0x1f300, Hi: 0x1f5ff, Stride: 1}, // Misc Symbols and Pictographs
		{Lo: 0x1f600, Hi: 0x1f64f, Stride: 1}, // Emoticons
		{Lo: 0x1f680, Hi: 0x1f6ff, Stride: 1}, // Transport and Map
		{Lo: 0x1f900, Hi: 0x1f9ff, Stride: 1}, // Supplemental Symbols and Pictographs
		{Lo: 0x1fa70, Hi: 0x1faff, Stride: 1}, // Symbols and Pictographs Extended-A
	},
}

// IsEmojiOnly は文字列が絵文字（および絵文字シーケンスの構成文字）のみで
// 構成されているかを判定する。空文字列はfalseを返す。
func IsEmojiOnly(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.In(r, emojiTable) {
			return false
		}
	}
	return true
}
