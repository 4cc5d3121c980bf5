package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductIDUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ProductID
	}{
		{"number", `{"id": 123}`, "123"},
		{"string", `{"id": "123"}`, "123"},
		{"null", `{"id": null}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Product
			require.NoError(t, json.Unmarshal([]byte(tt.in), &p))
			assert.Equal(t, tt.want, p.ID)
		})
	}

	var p Product
	assert.Error(t, json.Unmarshal([]byte(`{"id": true}`), &p))
}

func TestProductIDLess(t *testing.T) {
	assert.True(t, ProductID("9").Less("10"))
	assert.False(t, ProductID("10").Less("9"))
	assert.True(t, ProductID("a").Less("b"))
}

func TestProductDefaults(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"sku":" ABC-1 ","vendors":[{"name":"Zeta"},{"name":"Acme"},{"name":"Zeta"},{"name":""}]}`), &p))

	assert.True(t, p.IsActive())
	assert.Equal(t, "ABC-1", p.TrimmedSKU())
	assert.Equal(t, []string{"Acme", "Zeta"}, p.VendorNames())

	inactive := false
	p.Active = &inactive
	assert.False(t, p.IsActive())
}

func TestPrimaryImage(t *testing.T) {
	d := &ProductDetail{Images: []Image{{Src: "a.jpg"}, {Src: "b.jpg", Primary: true}}}
	assert.Equal(t, "b.jpg", d.PrimaryImage())

	d = &ProductDetail{Images: []Image{{Src: ""}, {Src: "c.jpg"}}}
	assert.Equal(t, "c.jpg", d.PrimaryImage())

	assert.Empty(t, (&ProductDetail{}).PrimaryImage())
}

func TestIndexInventory(t *testing.T) {
	idx := IndexInventory([]InventoryRow{
		{ProductID: "1", FinalSKU: "ABC-1-S"},
		{ProductID: "1", FinalSKU: "ABC-1-M"},
		{ProductID: "2", FinalSKU: ""},
		{ProductID: "", FinalSKU: "ORPHAN"},
	})

	assert.Equal(t, []string{"ABC-1-S", "ABC-1-M"}, idx["1"])
	assert.True(t, idx.Has("1"))
	assert.False(t, idx.Has("2"))
	assert.Len(t, idx, 1)
}

func TestResolveURL(t *testing.T) {
	base := "https://shop.example.com/"
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"https://cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"//cdn.example.com/a.jpg", "https://cdn.example.com/a.jpg"},
		{"/uploads/a.jpg", "https://shop.example.com/uploads/a.jpg"},
		{"uploads/a.jpg", "https://shop.example.com/uploads/a.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.raw, base), tt.raw)
	}
}

func TestTimestamps(t *testing.T) {
	ts, ok := ParseTimestamp("2024-05-01T10:00:00Z")
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Time.Year())

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)

	assert.True(t, SameTimestamp("2024-05-01T10:00:00Z", "2024-05-01T06:00:00-04:00"))
	assert.True(t, SameTimestamp("2024-05-01T10:00:00", "2024-05-01T10:00:00Z"))
	assert.False(t, SameTimestamp("2024-05-01T10:00:00Z", "2024-05-01T10:00:01Z"))
	assert.True(t, SameTimestamp("garbage", "garbage"))
	assert.False(t, SameTimestamp("garbage", "2024-05-01"))
}
