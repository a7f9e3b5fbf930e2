package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/japaniel/dilemmaguide/pkg/dilemma"
)

func TestPlainGroup(t *testing.T) {
	records := []dilemma.Record{
		{ID: "1", Dilemma: "上古战场", Option: "帮忙", Result: "特质：打工牛马", Map: "", Evaluation: "正面"},
		{ID: "2", Dilemma: "上古战场", Option: "帮忙", Result: "", Evaluation: "负面，诅咒"},
		{ID: "3", Dilemma: "上古战场", Option: "不帮忙", Result: "无事发生", Evaluation: "中性"},
	}
	groups := dilemma.Search(records, "上古")
	out := New(true).Results("上古", groups)

	want := strings.Join([]string{
		"⚠ 上古战场",
		"地图：未知地图",
		"",
		"你的选择【1】：帮忙",
		"产生的后果：✔ 特质：打工牛马",
		"产生的后果：✘ 暂无明确结果",
		"",
		"你的选择【2】：不帮忙",
		"产生的后果：· 无事发生",
	}, "\n")
	assert.Equal(t, want, out)
}

func TestEmptyStates(t *testing.T) {
	r := New(true)
	assert.Equal(t, "等待输入...", r.Results("", nil))
	assert.Equal(t, "暂无相关记录", r.Results("  ", nil))
	assert.Equal(t, "暂无相关记录", r.Results("不存在", nil))
}

func TestHeaderAndFooter(t *testing.T) {
	r := New(true)
	assert.Contains(t, r.Header(42), "已收录 42 条记录")
	assert.NotContains(t, r.Footer(""), "提交反馈")
	assert.Contains(t, r.Footer("https://example.com/form"), "https://example.com/form")
	assert.Equal(t, "数据来源于探险家记录 | 仅供参考\n"+FollowLine, r.Footer(""))
}

func TestEveryCategoryHasStyleAndGlyph(t *testing.T) {
	s := DefaultStyles()
	for _, c := range dilemma.Categories() {
		_, ok := s.Category[c]
		assert.True(t, ok, "missing style for %v", c)
		_, ok = palette[c.Style().Color]
		assert.True(t, ok, "missing color for %v", c)
		_, ok = glyphs[c.Style().Icon]
		assert.True(t, ok, "missing glyph for %v", c)
	}
	assert.Equal(t, "·", Glyph("unknown-token"))
}

func TestColoredOutputKeepsText(t *testing.T) {
	out := New(false).Outcome(dilemma.Record{Result: "直升机受损", Evaluation: "负面"})
	assert.Contains(t, out, "直升机受损")
	assert.Contains(t, out, "✘")
}
