package processor

// Topic 一个标准分类及其触发关键词（大小写不敏感的子串匹配）
type Topic struct {
	Name     string
	Keywords []string
}

// Taxonomy 固定的分类表；顺序即分类结果中的先后顺序
var Taxonomy = []Topic{
	{Name: "Technology", Keywords: []string{"tech", "software", "programming", "code", "developer", "AI", "machine learning", "startup", "silicon valley", "gadget", "iPhone", "android", "app", "digital", "cyber", "data", "algorithm"}},
	{Name: "Sports", Keywords: []string{"football", "basketball", "baseball", "soccer", "tennis", "golf", "olympics", "championship", "league", "team", "player", "game", "match", "score", "tournament"}},
	{Name: "Politics", Keywords: []string{"election", "government", "congress", "senate", "president", "political", "policy", "law", "legislation", "vote", "campaign", "democracy", "republican", "democrat"}},
	{Name: "Business", Keywords: []string{"economy", "market", "stock", "finance", "investment", "business", "company", "corporate", "profit", "revenue", "CEO", "startup", "entrepreneur", "trade", "commerce"}},
	{Name: "Health", Keywords: []string{"health", "medical", "medicine", "doctor", "hospital", "disease", "treatment", "vaccine", "fitness", "nutrition", "wellness", "mental health", "therapy"}},
	{Name: "Science", Keywords: []string{"research", "study", "science", "scientific", "discovery", "experiment", "climate", "environment", "space", "nasa", "biology", "chemistry", "physics"}},
	{Name: "Entertainment", Keywords: []string{"movie", "film", "tv", "television", "celebrity", "music", "album", "concert", "hollywood", "netflix", "streaming", "entertainment", "show"}},
	{Name: "World News", Keywords: []string{"international", "world", "global", "country", "nation", "diplomatic", "embassy", "foreign", "overseas", "continent", "refugee", "conflict", "peace"}},
	{Name: "Lifestyle", Keywords: []string{"travel", "food", "recipe", "fashion", "style", "home", "garden", "family", "relationship", "culture", "art", "hobby", "lifestyle"}},
}

// TopicNames 返回所有标准分类名
func TopicNames() []string {
	names := make([]string, 0, len(Taxonomy))
	for _, t := range Taxonomy {
		names = append(names, t.Name)
	}
	return names
}
