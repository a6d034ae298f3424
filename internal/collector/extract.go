package collector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainTextLimit 富文本去标签后作为摘要时的最大字符数
const plainTextLimit = 500

// Media 对应 media:content
type Media struct {
	URL  string
	Type string
}

// Enclosure 对应 RSS enclosure
type Enclosure struct {
	URL  string
	Type string
}

// RawItem 是订阅条目在各种格式下可能出现的字段集合，缺失的字段保持零值
type RawItem struct {
	GUID        string
	Link        string
	Title       string
	Published   string
	Content     string // content:encoded / Atom content
	Description string // description / summary

	MediaContents   []Media
	MediaThumbnails []string
	Enclosures      []Enclosure
	ITunesImage     string

	Categories []string // <category> / Atom category
	Category   []string // dc:subject 等单数形式
}

// Signals 提取结果
type Signals struct {
	Image      string
	HTML       string
	Text       string
	Categories []string
}

// Extract 从 RawItem 中提取图片、正文与原始分类；纯函数，字段缺失不报错
func Extract(item RawItem) Signals {
	html, text := extractContent(item)
	return Signals{
		Image:      extractImage(item),
		HTML:       html,
		Text:       text,
		Categories: extractCategories(item),
	}
}

// extractImage 依次尝试 media:content、media:thumbnail、enclosure、正文 img、摘要 img、itunes:image
func extractImage(item RawItem) string {
	for _, m := range item.MediaContents {
		if isImageType(m.Type) && m.URL != "" {
			return m.URL
		}
	}
	for _, u := range item.MediaThumbnails {
		if u != "" {
			return u
		}
	}
	for _, enc := range item.Enclosures {
		if isImageType(enc.Type) && enc.URL != "" {
			return enc.URL
		}
	}
	if src := firstImageSrc(item.Content); src != "" {
		return src
	}
	if src := firstImageSrc(item.Description); src != "" {
		return src
	}
	return item.ITunesImage
}

// extractContent 优先使用富文本正文；纯文本取源提供的摘要，没有则取正文去标签后的前 500 个字符
func extractContent(item RawItem) (html, text string) {
	if strings.TrimSpace(item.Content) != "" {
		text = StripTags(item.Description)
		if text == "" {
			text = StripTags(item.Content)
		}
		return item.Content, truncateRunes(text, plainTextLimit)
	}
	return item.Description, StripTags(item.Description)
}

func extractCategories(item RawItem) []string {
	out := make([]string, 0, len(item.Categories)+len(item.Category))
	for _, group := range [][]string{item.Categories, item.Category} {
		for _, c := range group {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

func isImageType(t string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(t)), "image/")
}

// firstImageSrc 返回 HTML 片段中第一个带 src 的 img
func firstImageSrc(fragment string) string {
	if !strings.Contains(strings.ToLower(fragment), "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src := ""
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src = strings.TrimSpace(s.AttrOr("src", ""))
		return src == ""
	})
	return src
}

// StripTags 去掉 HTML 标签并压缩空白
func StripTags(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !strings.Contains(fragment, "<") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// truncateRunes 按 rune 截断，避免切断多字节字符
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
