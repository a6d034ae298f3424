package processor

import (
	"strings"

	"github.com/LJTian/FeedHub/internal/storage"
)

// Classifier 基于关键词表给文章打分类标签
type Classifier struct {
	topics []Topic
}

// NewClassifier topics 为空时使用内置 Taxonomy
func NewClassifier(topics []Topic) *Classifier {
	if len(topics) == 0 {
		topics = Taxonomy
	}
	lowered := make([]Topic, 0, len(topics))
	for _, t := range topics {
		kws := make([]string, 0, len(t.Keywords))
		for _, k := range t.Keywords {
			kws = append(kws, strings.ToLower(k))
		}
		lowered = append(lowered, Topic{Name: t.Name, Keywords: kws})
	}
	return &Classifier{topics: lowered}
}

// Classify 返回非空、无重复的分类列表。
// 源自带的分类能映射到标准分类时直接采用，不再扫描正文；
// 否则在标题+摘要中统计关键词命中数：命中 >= 2 个，或只命中 1 个但该关键词长度 > 3。
func (c *Classifier) Classify(title, description string, rawCategories []string) []string {
	detected := make([]string, 0, 2)

	for _, raw := range rawCategories {
		normalized := strings.ToLower(raw)
		for _, t := range c.topics {
			if !matchesLabel(normalized, t) {
				continue
			}
			if !contains(detected, t.Name) {
				detected = append(detected, t.Name)
			}
		}
	}
	if len(detected) > 0 {
		return detected
	}

	content := strings.ToLower(title + " " + description)
	for _, t := range c.topics {
		matched := 0
		longMatch := false
		for _, k := range t.Keywords {
			if strings.Contains(content, k) {
				matched++
				if len(k) > 3 {
					longMatch = true
				}
			}
		}
		if matched >= 2 || (matched == 1 && longMatch) {
			detected = append(detected, t.Name)
		}
	}

	if len(detected) == 0 {
		return []string{storage.DefaultCategory}
	}
	return detected
}

func matchesLabel(label string, t Topic) bool {
	if strings.Contains(label, strings.ToLower(t.Name)) {
		return true
	}
	for _, k := range t.Keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
