package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyerfyer/manual-ingest/internal/layout"
)

func heading(text string, level int, page int, y1, y2 float64) layout.Heading {
	return layout.Heading{
		Text:  text,
		Level: level,
		Page:  page,
		BBox:  layout.BBox{X1: 50, Y1: y1, X2: 500, Y2: y2},
	}
}

func TestHierarchyBuilder_TitleAt(t *testing.T) {
	builder := NewHierarchyBuilder([]layout.Heading{
		heading("Installation", 1, 1, 80, 100),
		heading("Wiring", 2, 1, 280, 300),
	})

	t.Run("NearestHeadingAbove", func(t *testing.T) {
		assert.Equal(t, "Installation", builder.TitleAt(150))
		assert.Equal(t, "Wiring", builder.TitleAt(350))
	})

	t.Run("HeadingBottomEqualsPosition", func(t *testing.T) {
		assert.Equal(t, "Installation", builder.TitleAt(100))
	})

	t.Run("NoHeadingAbove", func(t *testing.T) {
		assert.Equal(t, "", builder.TitleAt(50))
	})

	t.Run("NoHeadingsAtAll", func(t *testing.T) {
		empty := NewHierarchyBuilder(nil)
		assert.Equal(t, "", empty.TitleAt(400))
	})
}

func TestHierarchyBuilder_Path(t *testing.T) {
	t.Run("NestedLevels", func(t *testing.T) {
		builder := NewHierarchyBuilder([]layout.Heading{
			heading("Installation", 1, 1, 80, 100),
			heading("Electrical", 2, 1, 180, 200),
			heading("Grounding", 3, 1, 280, 300),
		})
		assert.Equal(t, "Installation > Electrical > Grounding", builder.Path())
	})

	t.Run("TopLevelResetsStack", func(t *testing.T) {
		builder := NewHierarchyBuilder([]layout.Heading{
			heading("Installation", 1, 1, 80, 100),
			heading("Electrical", 2, 1, 180, 200),
			heading("Maintenance", 1, 1, 280, 300),
		})
		assert.Equal(t, "Maintenance", builder.Path())
	})

	t.Run("SiblingTruncates", func(t *testing.T) {
		builder := NewHierarchyBuilder([]layout.Heading{
			heading("Installation", 1, 1, 80, 100),
			heading("Electrical", 2, 1, 180, 200),
			heading("Grounding", 3, 1, 280, 300),
			heading("Hydraulic", 2, 1, 380, 400),
		})
		assert.Equal(t, "Installation > Hydraulic", builder.Path())
	})

	t.Run("SkippedLevelStillAppends", func(t *testing.T) {
		builder := NewHierarchyBuilder([]layout.Heading{
			heading("Installation", 1, 1, 80, 100),
			heading("Torque Values", 3, 1, 180, 200),
		})
		assert.Equal(t, "Installation > Torque Values", builder.Path())
	})

	t.Run("NoHeadings", func(t *testing.T) {
		builder := NewHierarchyBuilder(nil)
		assert.Equal(t, "", builder.Path())
	})
}

func TestHierarchyBuilder_SortsInput(t *testing.T) {
	// headings arrive out of document order; the builder must not care
	builder := NewHierarchyBuilder([]layout.Heading{
		heading("Electrical", 2, 1, 180, 200),
		heading("Installation", 1, 1, 80, 100),
	})

	assert.Equal(t, "Installation > Electrical", builder.Path())
	assert.Equal(t, "Installation", builder.TitleAt(150))
}
