// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// The prompts are written in Chinese because the record vocabulary
// (periods, diets, fossil types) is Chinese.

var basicInfoTmpl = template.Must(template.New("basic").Parse(`你是古生物学资料整理专家。请阅读下面的搜索结果，整理恐龙 "{{.Name}}" 的基本信息。

搜索结果：
{{.Results}}

只返回一个 JSON 对象，不要输出其他文字，字段如下：
{
  "name": "中文名称",
  "scientific_name": "拉丁学名",
  "period": "地质时期，从以下取值：{{.Periods}}",
  "diet": "食性，从以下取值：{{.Diets}}",
  "length_min_meters": 最小体长（米，数字）,
  "length_max_meters": 最大体长（米，数字）,
  "weight_min_tons": 最小体重（吨，数字）,
  "weight_max_tons": 最大体重（吨，数字）,
  "habitat": "栖息环境",
  "region": "主要分布地区",
  "description": "不少于100字的客观描述"
}

要求：
1. 只填写资料中能确认的内容，无法确认的字段填 null
2. 数值字段只填数字，不带单位
3. 地质时期使用中文标准术语
`))

var fossilsTmpl = template.Must(template.New("fossils").Parse(`你是恐龙化石研究专家。请从下面的搜索结果中找出恐龙 "{{.Name}}" 的化石发现记录。

搜索结果：
{{.Results}}

只返回一个 JSON 数组，不要输出其他文字，每个元素如下：
{
  "discovery_location": "发现地点，具体到国家、地区或地层",
  "discovery_date": "发现日期，YYYY-MM-DD，只知道年份时写 YYYY",
  "fossil_type": "化石类型，从以下取值：{{.FossilTypes}}",
  "description": "化石的描述及科学价值"
}

只收录资料中明确记载的发现；没有记录时返回 []。
`))

var imageURLsTmpl = template.Must(template.New("images").Parse(`你是古生物图片筛选专家。请从下面的搜索结果中找出与恐龙 "{{.Name}}" 直接相关的图片地址。

搜索结果：
{{.Results}}

只返回一个由 URL 字符串组成的 JSON 数组，例如 ["https://...", "https://..."]，不要输出其他文字。

要求：
1. 只选与 "{{.Name}}" 直接相关、清晰且科学准确的图片
2. 排除图标、示意图和无关图片
3. URL 必须完整
4. 最多 {{.Max}} 个
`))

var validateTmpl = template.Must(template.New("validate").Parse(`你是古生物学资料审核专家。请检查下面这条恐龙信息是否可用，并给出整理后的版本。

待审核信息：
{{.Info}}

只返回一个 JSON 对象，不要输出其他文字：
{
  "isValid": true 或 false,
  "errors": ["发现的问题"],
  "cleanedInfo": { 与待审核信息字段相同的整理结果 }
}

审核标准（宽松）：
1. 至少要有名称和基本分类信息（学名、时期或食性之一）
2. 学名尽量规范，只有属名也可以
3. 数值要合理，可以缺失
4. 其他字段可选

整理规则：
1. 统一已有字段的术语和格式
2. 保留确定的内容，不确定的设为 null
3. 不要求所有字段完整
`))

type promptData struct {
	Name        string
	Results     string
	Info        string
	Periods     string
	Diets       string
	FossilTypes string
	Max         int
}

func render(tmpl *template.Template, data promptData) (string, error) {
	data.Periods = strings.Join(types.Periods, "、")
	data.Diets = strings.Join(types.DietTypes, "、")
	data.FossilTypes = strings.Join(types.FossilTypes, "、")

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatResults renders at most maxResults results with each content cut to
// maxChars runes.
func formatResults(results []types.SearchResult, maxResults, maxChars int, withSource bool) string {
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("标题: ")
		b.WriteString(r.Title)
		b.WriteString("\n内容: ")
		b.WriteString(truncateRunes(r.Content, maxChars))
		if withSource {
			b.WriteString("\n来源: ")
			b.WriteString(r.URL)
		}
		b.WriteString("\n---")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
