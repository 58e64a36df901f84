package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widget(stock int) Product {
	return Product{ID: "1", Name: "Widget", Price: 2.5, Images: []string{"w1.png", "w2.png"}, Stock: stock}
}

func TestAdd_NewLineSnapshotsProduct(t *testing.T) {
	items, out, err := Add(nil, widget(10), 2)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, LineItem{
		ProductID:  "1",
		Name:       "Widget",
		UnitPrice:  2.5,
		ImageRef:   "w1.png",
		Quantity:   2,
		StockLimit: 10,
	}, items[0])
	assert.Equal(t, Outcome{ProductID: "1", Requested: 2, Quantity: 2, Present: true}, out)
}

func TestAdd_NoImages(t *testing.T) {
	p := widget(5)
	p.Images = nil

	items, _, err := Add(nil, p, 1)
	require.NoError(t, err)
	assert.Equal(t, "", items[0].ImageRef)
}

func TestAdd_ClampsNewLineToStock(t *testing.T) {
	items, out, err := Add(nil, widget(3), 5)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.True(t, out.Clamped)
	assert.Equal(t, 5, out.Requested)
	assert.Equal(t, 3, out.Quantity)
}

func TestAdd_MergesSameProduct(t *testing.T) {
	cases := []struct {
		name       string
		q1, q2     int
		stock      int
		wantQty    int
		wantClamps bool
	}{
		{"below stock", 1, 2, 10, 3, false},
		{"exactly stock", 4, 6, 10, 10, false},
		{"above stock", 7, 6, 10, 10, true},
		{"first add already clamped", 12, 1, 10, 10, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, _, err := Add(nil, widget(tc.stock), tc.q1)
			require.NoError(t, err)
			items, out, err := Add(items, widget(tc.stock), tc.q2)
			require.NoError(t, err)

			require.Len(t, items, 1)
			assert.Equal(t, tc.wantQty, items[0].Quantity)
			assert.Equal(t, tc.wantClamps, out.Clamped)
		})
	}
}

func TestAdd_MergeKeepsOriginalSnapshotButRefreshesStock(t *testing.T) {
	items, _, err := Add(nil, widget(10), 1)
	require.NoError(t, err)

	changed := widget(4)
	changed.Name = "Renamed"
	changed.Price = 99
	items, _, err = Add(items, changed, 1)
	require.NoError(t, err)

	assert.Equal(t, "Widget", items[0].Name)
	assert.Equal(t, 2.5, items[0].UnitPrice)
	assert.Equal(t, 4, items[0].StockLimit)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestAdd_RejectsNonPositiveQuantity(t *testing.T) {
	start, _, err := Add(nil, widget(10), 1)
	require.NoError(t, err)

	for _, qty := range []int{0, -3} {
		items, _, err := Add(start, widget(10), qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Equal(t, start, items)
	}
}

func TestAdd_OutOfStockNeverCreatesLine(t *testing.T) {
	items, out, err := Add(nil, widget(0), 2)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, out.Present)
	assert.True(t, out.Clamped)

	items, _, err = Add(nil, widget(5), 2)
	require.NoError(t, err)
	items, out, err = Add(items, widget(0), 1)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.True(t, out.Removed)
}

func TestAdd_DoesNotMutateInput(t *testing.T) {
	start, _, err := Add(nil, widget(10), 1)
	require.NoError(t, err)

	_, _, err = Add(start, widget(10), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, start[0].Quantity)
}

func TestRemove(t *testing.T) {
	items, _, _ := Add(nil, widget(10), 1)
	other := Product{ID: "2", Name: "Gadget", Price: 1, Stock: 5}
	items, _, _ = Add(items, other, 1)

	items, out := Remove(items, "1")
	assert.True(t, out.Removed)
	require.Len(t, items, 1)
	assert.Equal(t, "2", items[0].ProductID)

	items, out = Remove(items, "missing")
	assert.False(t, out.Removed)
	assert.Len(t, items, 1)
}

func TestUpdateQuantity(t *testing.T) {
	start, _, _ := Add(nil, widget(5), 1)

	t.Run("sets quantity", func(t *testing.T) {
		items, out := UpdateQuantity(start, "1", 4)
		assert.Equal(t, 4, items[0].Quantity)
		assert.False(t, out.Clamped)
	})

	t.Run("clamps to stock limit", func(t *testing.T) {
		items, out := UpdateQuantity(start, "1", 9)
		assert.Equal(t, 5, items[0].Quantity)
		assert.True(t, out.Clamped)
		assert.Equal(t, 9, out.Requested)
	})

	t.Run("zero removes", func(t *testing.T) {
		items, out := UpdateQuantity(start, "1", 0)
		assert.Empty(t, items)
		assert.True(t, out.Removed)
	})

	t.Run("negative removes", func(t *testing.T) {
		items, out := UpdateQuantity(start, "1", -2)
		assert.Empty(t, items)
		assert.True(t, out.Removed)
	})

	t.Run("unknown product is a no-op", func(t *testing.T) {
		items, out := UpdateQuantity(start, "404", 3)
		assert.Equal(t, start, items)
		assert.False(t, out.Present)
		assert.False(t, out.Removed)
	})
}

func TestDerivedTotals(t *testing.T) {
	items, _, _ := Add(nil, Product{ID: "1", Name: "A", Price: 0.1, Stock: 100}, 3)
	items, _, _ = Add(items, Product{ID: "2", Name: "B", Price: 19.99, Stock: 100}, 2)
	items, _, _ = Add(items, Product{ID: "1", Name: "A", Price: 0.1, Stock: 100}, 1)

	assert.Equal(t, 6, ItemCount(items))
	assert.Equal(t, 40.38, Total(items))

	items, _ = UpdateQuantity(items, "2", 1)
	assert.Equal(t, 5, ItemCount(items))
	assert.Equal(t, 20.39, Total(items))

	items, _ = Remove(items, "1")
	assert.Equal(t, 1, ItemCount(items))
	assert.Equal(t, 19.99, Total(items))

	assert.Equal(t, 0, ItemCount(nil))
	assert.Equal(t, 0.0, Total(nil))
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	items, _, _ := Add(nil, widget(10), 3)
	items, _, _ = Add(items, Product{ID: "2", Name: "Gadget", Price: 7.25, Stock: 1}, 4)

	data, err := Encode(items)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)
}

func TestDecode_Invalid(t *testing.T) {
	for _, data := range []string{`{`, `{"a":1}`, `null`, `"text"`} {
		_, err := Decode([]byte(data))
		assert.Error(t, err, data)
	}

	items, err := Decode(nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}
