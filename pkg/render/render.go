package render

import (
	"fmt"
	"strings"

	"github.com/japaniel/dilemmaguide/pkg/dilemma"
)

// Renderer turns grouped results into terminal text.
type Renderer struct {
	Styles Styles
	// Width wraps cards when positive.
	Width int
}

// New returns a Renderer; plain disables colors and borders.
func New(plain bool) *Renderer {
	if plain {
		return &Renderer{Styles: PlainStyles()}
	}
	return &Renderer{Styles: DefaultStyles()}
}

// Header renders the title line with the number of known records.
func (r *Renderer) Header(count int) string {
	title := r.Styles.Title.Render("探险困境") + r.Styles.Accent.Render("生存指南")
	return title + "\n" + r.Styles.Subtle.Render(fmt.Sprintf("已收录 %d 条记录", count))
}

// Empty renders the placeholder shown instead of results: a prompt until something
// is typed, a notice when nothing matched. Whitespace counts as typed.
func (r *Renderer) Empty(query string) string {
	if query == "" {
		return r.Styles.Subtle.Render("等待输入...")
	}
	return r.Styles.Subtle.Render("暂无相关记录")
}

// FollowLine closes every footer.
const FollowLine = "更多攻略欢迎关注 @悦小白游戏记"

// Footer renders the feedback link when set, the data disclaimer and the follow line.
func (r *Renderer) Footer(feedbackURL string) string {
	var sb strings.Builder
	if feedbackURL != "" {
		sb.WriteString(r.Styles.Label.Render("📝 提交反馈 / 补充数据: "))
		sb.WriteString(feedbackURL)
		sb.WriteString("\n")
	}
	sb.WriteString(r.Styles.Subtle.Render("数据来源于探险家记录 | 仅供参考"))
	sb.WriteString("\n")
	sb.WriteString(r.Styles.Accent.Render(FollowLine))
	return sb.String()
}

// Results renders the groups for query, or the matching empty state.
func (r *Renderer) Results(query string, groups []dilemma.DilemmaGroup) string {
	if len(groups) == 0 {
		return r.Empty(query)
	}
	cards := make([]string, len(groups))
	for i, g := range groups {
		cards[i] = r.Group(g)
	}
	return strings.Join(cards, "\n")
}

// Group renders one dilemma as a card: name, map and numbered options with their outcomes.
func (r *Renderer) Group(g dilemma.DilemmaGroup) string {
	var sb strings.Builder
	sb.WriteString(r.Styles.Accent.Render("⚠ ") + r.Styles.Title.Render(g.Name))
	sb.WriteString("\n")
	sb.WriteString(r.Styles.Subtle.Render("地图：" + g.DisplayMap()))

	for i, o := range g.Options {
		sb.WriteString("\n\n")
		sb.WriteString(r.Styles.Label.Render(fmt.Sprintf("你的选择【%d】：", i+1)))
		sb.WriteString(r.Styles.Value.Render(o.Option))
		for _, rec := range o.Records {
			sb.WriteString("\n")
			sb.WriteString(r.Styles.Label.Render("产生的后果："))
			sb.WriteString(r.Outcome(rec))
		}
	}

	card := r.Styles.Card
	if r.Width > 0 {
		card = card.Width(r.Width)
	}
	return card.Render(sb.String())
}

// Outcome renders a record's result with the icon and color of its category.
func (r *Renderer) Outcome(rec dilemma.Record) string {
	c := rec.Category()
	style, ok := r.Styles.Category[c]
	if !ok {
		style = r.Styles.Value
	}
	return style.Render(Glyph(c.Style().Icon) + " " + rec.DisplayResult())
}
