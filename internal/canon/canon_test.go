package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Done  bool   `json:"done"`
}

func TestMarshalSortsKeys(t *testing.T) {
	got, err := Marshal(map[string]any{"b": 1, "a": []int{3, 2}, "c": map[string]any{"z": true, "y": nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[3,2],"b":1,"c":{"y":null,"z":true}}`, string(got))
}

func TestMarshalHonorsStructTags(t *testing.T) {
	got, err := Marshal(row{Name: "Blob", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, `{"count":2,"done":false,"name":"Blob"}`, string(got))
}

func TestMarshalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as a surrogate pair starting 0xD83D, which sorts
	// before U+FB01 (0xFB01) in UTF-16 but after it in UTF-8.
	got, err := Marshal(map[string]int{"\U0001F600": 1, "\uFB01": 2})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uFB01\":2}", string(got))
}

func TestMarshalStrings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"nfc normalized", "e\u0301", "\"\u00e9\""},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `x\u2029`, `"x\\u2029"`},
		{"control escaped", "a\nb", `"a\nb"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalKeepsNumberText(t *testing.T) {
	got, err := Canonicalize([]byte(`{"big": 12345678901234567890, "f": 1.5}`))
	require.NoError(t, err)
	assert.Equal(t, `{"big":12345678901234567890,"f":1.5}`, string(got))
}

func TestCanonicalizeRejectsTrailingData(t *testing.T) {
	_, err := Canonicalize([]byte(`{} {}`))
	assert.Error(t, err)
}

func TestMarshalUnsupported(t *testing.T) {
	_, err := Marshal(make(chan int))
	assert.Error(t, err)
}

func TestFingerprintStable(t *testing.T) {
	a := MustFingerprint(map[string]any{"x": 1, "y": "two"})
	b := MustFingerprint(map[string]any{"y": "two", "x": 1})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c := MustFingerprint(map[string]any{"x": 2, "y": "two"})
	assert.NotEqual(t, a, c)
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"x":1}`)
	assert.NotEqual(t, Hash("a", data), Hash("b", data))
	assert.Equal(t, Hash(DomainState, data), Hash(DomainState, data))
}
