package notion

import (
	"testing"

	"github.com/jomei/notionapi"
	"github.com/m-mizutani/gt"
)

func text(s string) []notionapi.RichText {
	return []notionapi.RichText{{PlainText: s}}
}

func TestRenderBlock(t *testing.T) {
	t.Run("headings", func(t *testing.T) {
		block := &notionapi.Heading1Block{
			Heading1: notionapi.Heading{RichText: text("Protocolo frente a maltrato")},
		}
		gt.Value(t, renderBlock(block, 0)).Equal("# Protocolo frente a maltrato")
	})

	t.Run("numbered list uses running counter", func(t *testing.T) {
		block := &notionapi.NumberedListItemBlock{
			NumberedListItem: notionapi.ListItem{RichText: text("Entrevistar al estudiante")},
		}
		gt.Value(t, renderBlock(block, 3)).Equal("3. Entrevistar al estudiante")
	})

	t.Run("to_do carries checked state", func(t *testing.T) {
		block := &notionapi.ToDoBlock{
			ToDo: notionapi.ToDo{RichText: text("Notificar apoderados"), Checked: true},
		}
		gt.Value(t, renderBlock(block, 0)).Equal("- [x] Notificar apoderados")
	})
}

func TestRichText(t *testing.T) {
	t.Run("bold annotation", func(t *testing.T) {
		parts := []notionapi.RichText{{
			PlainText:   "plazo máximo",
			Annotations: &notionapi.Annotations{Bold: true},
		}}
		gt.Value(t, richText(parts)).Equal("**plazo máximo**")
	})

	t.Run("link", func(t *testing.T) {
		parts := []notionapi.RichText{{
			PlainText: "Circular 782",
			Href:      "https://example.cl/c782",
		}}
		gt.Value(t, richText(parts)).Equal("[Circular 782](https://example.cl/c782)")
	})
}
