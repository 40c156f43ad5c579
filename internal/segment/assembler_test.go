package segment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/manual-ingest/internal/layout"
)

// fakeImageStore records SaveImage calls and returns a fixed reference.
type fakeImageStore struct {
	calls int
	docID string
	page  int
	data  []byte
	ref   string
	err   error
}

func (f *fakeImageStore) SaveImage(docID string, page int, bbox layout.BBox, data []byte) (string, string, error) {
	f.calls++
	f.docID = docID
	f.page = page
	f.data = data
	if f.err != nil {
		return "", "", f.err
	}
	return f.ref, "deadbeef", nil
}

func singlePageExtract(page layout.PageExtract) *layout.DocumentExtract {
	return &layout.DocumentExtract{
		DocID:      "manual-01",
		TotalPages: 1,
		Pages:      []layout.PageExtract{page},
	}
}

func TestAssembler_BuildUnits_Empty(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	assert.Empty(t, assembler.BuildUnits(nil))
	assert.Empty(t, assembler.BuildUnits(&layout.DocumentExtract{DocID: "x"}))
	assert.NotNil(t, assembler.BuildUnits(nil))
}

func TestAssembler_BuildUnits_ImageUnit(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	extract := singlePageExtract(layout.PageExtract{
		PageNumber: 3,
		Headings:   []layout.Heading{heading("Pump Maintenance", 1, 3, 20, 40)},
		ImageSpans: []layout.ImageSpan{image(3, 100, 150)},
		TextSpans: []layout.TextSpan{
			span("Figure 3: pump assembly", 3, 75, 90),
			span("Remove the four retaining bolts.", 3, 155, 170),
		},
	})

	units := assembler.BuildUnits(extract)
	require.NotEmpty(t, units)

	unit := units[0]
	assert.Equal(t, UnitImageWithContext, unit.Kind)
	assert.Equal(t, "manual-01", unit.DocID)
	assert.Equal(t, 3, unit.Page)
	assert.NotEmpty(t, unit.ID)
	assert.NotEmpty(t, unit.ImageRef)
	assert.Equal(t, "Figure 3: pump assembly Remove the four retaining bolts.", unit.Text)
	assert.Equal(t, "Pump Maintenance", unit.SectionTitle)
	assert.Equal(t, "Pump Maintenance", unit.SectionPath)
	assert.Greater(t, unit.TokenCount, 0)
}

func TestAssembler_BuildUnits_IsolatedImageFallsBack(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	extract := singlePageExtract(layout.PageExtract{
		PageNumber: 1,
		ImageSpans: []layout.ImageSpan{image(1, 100, 150)},
	})

	units := assembler.BuildUnits(extract)
	require.Len(t, units, 1)
	assert.Equal(t, "Image", units[0].Text)
	assert.NotEmpty(t, units[0].ImageRef)
}

func TestAssembler_BuildUnits_KindMatchesImageRef(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	extract := singlePageExtract(layout.PageExtract{
		PageNumber: 1,
		ImageSpans: []layout.ImageSpan{image(1, 100, 150)},
		TextSpans: []layout.TextSpan{
			span("Figure 1: overview", 1, 75, 90),
			span("Body text far away from everything on the page.", 1, 400, 420),
		},
	})

	for _, unit := range assembler.BuildUnits(extract) {
		if unit.Kind == UnitImageWithContext {
			assert.NotEmpty(t, unit.ImageRef)
		} else {
			assert.Empty(t, unit.ImageRef)
		}
	}
}

func TestAssembler_BuildUnits_TextNearImageNotDuplicated(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	// image center 125; the near span's center 130 is within the
	// threshold, the far span's center 400 is not
	extract := singlePageExtract(layout.PageExtract{
		PageNumber: 1,
		ImageSpans: []layout.ImageSpan{image(1, 100, 150)},
		TextSpans: []layout.TextSpan{
			span("label right next to the image", 1, 115, 145),
			span("Unrelated paragraph much further down the page.", 1, 390, 410),
		},
	})

	units := assembler.BuildUnits(extract)
	require.Len(t, units, 2)

	assert.Equal(t, UnitImageWithContext, units[0].Kind)
	assert.Contains(t, units[0].Text, "label right next to the image")

	assert.Equal(t, UnitTextOnly, units[1].Kind)
	assert.Equal(t, "Unrelated paragraph much further down the page.", units[1].Text)
	assert.NotContains(t, units[1].Text, "label")
}

func TestAssembler_BuildUnits_TextGrouping(t *testing.T) {
	t.Run("UnderBudgetSingleGroup", func(t *testing.T) {
		assembler := NewAssembler(NewTokenCounter())
		extract := singlePageExtract(layout.PageExtract{
			PageNumber: 1,
			TextSpans: []layout.TextSpan{
				span("First sentence of the section.", 1, 100, 120),
				span("Second sentence of the section.", 1, 130, 150),
			},
		})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 1)
		assert.Equal(t, UnitTextOnly, units[0].Kind)
		assert.Equal(t, "First sentence of the section. Second sentence of the section.", units[0].Text)
	})

	t.Run("BudgetOverflowSplitsGroups", func(t *testing.T) {
		assembler := NewAssembler(NewTokenCounter(), WithChunkSize(6))
		extract := singlePageExtract(layout.PageExtract{
			PageNumber: 1,
			TextSpans: []layout.TextSpan{
				span("four words in here", 1, 100, 120), // ~5 tokens
				span("another four word span", 1, 130, 150),
				span("and one more still", 1, 160, 180),
			},
		})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 3)
		for _, unit := range units {
			assert.Equal(t, UnitTextOnly, unit.Kind)
		}
	})

	t.Run("SectionTitlePerGroup", func(t *testing.T) {
		assembler := NewAssembler(NewTokenCounter(), WithChunkSize(6))
		extract := singlePageExtract(layout.PageExtract{
			PageNumber: 1,
			Headings: []layout.Heading{
				heading("Setup", 1, 1, 20, 40),
				heading("Teardown", 1, 1, 200, 220),
			},
			TextSpans: []layout.TextSpan{
				span("first group under setup", 1, 100, 120),
				span("second group under teardown", 1, 300, 320),
			},
		})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 2)
		assert.Equal(t, "Setup", units[0].SectionTitle)
		assert.Equal(t, "Teardown", units[1].SectionTitle)
	})

	t.Run("FinalGroupKeptByDefault", func(t *testing.T) {
		assembler := NewAssembler(NewTokenCounter())
		extract := singlePageExtract(layout.PageExtract{
			PageNumber: 1,
			TextSpans:  []layout.TextSpan{span("tiny", 1, 100, 110)},
		})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 1)
	})

	t.Run("MinUnitSizeDropsSmallGroup", func(t *testing.T) {
		assembler := NewAssembler(NewTokenCounter(), WithMinUnitSize(10))
		extract := singlePageExtract(layout.PageExtract{
			PageNumber: 1,
			TextSpans:  []layout.TextSpan{span("tiny", 1, 100, 110)},
		})

		assert.Empty(t, assembler.BuildUnits(extract))
	})
}

func TestAssembler_BuildUnits_Ordering(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	extract := &layout.DocumentExtract{
		DocID:      "manual-01",
		TotalPages: 2,
		Pages: []layout.PageExtract{
			{
				PageNumber: 2,
				TextSpans:  []layout.TextSpan{span("page two body text", 2, 300, 320)},
			},
			{
				PageNumber: 1,
				ImageSpans: []layout.ImageSpan{image(1, 100, 150)},
				TextSpans:  []layout.TextSpan{span("page one body text far below", 1, 400, 420)},
			},
		},
	}

	units := assembler.BuildUnits(extract)
	require.Len(t, units, 3)

	// pages ascending, images before text on the same page
	assert.Equal(t, 1, units[0].Page)
	assert.Equal(t, UnitImageWithContext, units[0].Kind)
	assert.Equal(t, 1, units[1].Page)
	assert.Equal(t, UnitTextOnly, units[1].Kind)
	assert.Equal(t, 2, units[2].Page)
}

func TestAssembler_BuildUnits_ImageStore(t *testing.T) {
	t.Run("StoreRefPropagates", func(t *testing.T) {
		store := &fakeImageStore{ref: "asset-123"}
		assembler := NewAssembler(NewTokenCounter(), WithImageStore(store))

		img := image(4, 100, 150)
		img.Data = []byte{0x89, 0x50, 0x4e, 0x47}
		extract := singlePageExtract(layout.PageExtract{PageNumber: 4, ImageSpans: []layout.ImageSpan{img}})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 1)
		assert.Equal(t, "asset-123", units[0].ImageRef)
		assert.Equal(t, 1, store.calls)
		assert.Equal(t, "manual-01", store.docID)
		assert.Equal(t, 4, store.page)
		assert.Equal(t, img.Data, store.data)
	})

	t.Run("ExistingRefSkipsStore", func(t *testing.T) {
		store := &fakeImageStore{ref: "asset-123"}
		assembler := NewAssembler(NewTokenCounter(), WithImageStore(store))

		img := image(1, 100, 150)
		img.ImageRef = "already-stored"
		img.Data = []byte{1, 2, 3}
		extract := singlePageExtract(layout.PageExtract{PageNumber: 1, ImageSpans: []layout.ImageSpan{img}})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 1)
		assert.Equal(t, "already-stored", units[0].ImageRef)
		assert.Equal(t, 0, store.calls)
	})

	t.Run("StoreFailureMintsReference", func(t *testing.T) {
		store := &fakeImageStore{err: errors.New("bucket offline")}
		assembler := NewAssembler(NewTokenCounter(), WithImageStore(store))

		img := image(1, 100, 150)
		img.Data = []byte{1, 2, 3}
		extract := singlePageExtract(layout.PageExtract{PageNumber: 1, ImageSpans: []layout.ImageSpan{img}})

		units := assembler.BuildUnits(extract)
		require.Len(t, units, 1)
		assert.NotEmpty(t, units[0].ImageRef)
	})
}

func TestAssembler_BuildUnits_Deterministic(t *testing.T) {
	assembler := NewAssembler(NewTokenCounter())

	extract := singlePageExtract(layout.PageExtract{
		PageNumber: 1,
		Headings:   []layout.Heading{heading("Safety", 1, 1, 20, 40)},
		ImageSpans: []layout.ImageSpan{image(1, 100, 150)},
		TextSpans: []layout.TextSpan{
			span("Figure 1: guard position", 1, 75, 90),
			span("Warning: keep hands clear of the rollers.", 1, 400, 420),
		},
	})

	first := assembler.BuildUnits(extract)
	second := assembler.BuildUnits(extract)
	require.Equal(t, len(first), len(second))

	// unit ids are freshly minted per run; everything else must agree
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Page, second[i].Page)
		assert.Equal(t, first[i].SectionTitle, second[i].SectionTitle)
		assert.Equal(t, first[i].SectionPath, second[i].SectionPath)
		assert.Equal(t, first[i].TokenCount, second[i].TokenCount)
		assert.Equal(t, first[i].Tags, second[i].Tags)
	}
}
