package knowledge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractConcepts_Frequency(t *testing.T) {
	concepts := ExtractConcepts("graph graph graph database database concept")

	require.Len(t, concepts, 2)
	assert.Equal(t, "graph", concepts[0].Name)
	assert.Equal(t, 3, concepts[0].Count)
	assert.InDelta(t, 0.3, concepts[0].Confidence, 1e-9)
	assert.Equal(t, "database", concepts[1].Name)
	assert.Equal(t, 2, concepts[1].Count)
	assert.InDelta(t, 0.2, concepts[1].Confidence, 1e-9)
	assert.Equal(t, "graph graph graph database database concept", concepts[0].Context)
}

func TestExtractConcepts_CaseFoldingAndShortWords(t *testing.T) {
	concepts := ExtractConcepts("Rust, rust! RUST. the the the and and and")

	require.Len(t, concepts, 1)
	assert.Equal(t, "rust", concepts[0].Name)
	assert.Equal(t, 3, concepts[0].Count)
}

func TestExtractConcepts_TopTenOnly(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		word := fmt.Sprintf("word%c", 'a'+i)
		// earlier words are more frequent
		for j := 0; j < 14-i; j++ {
			b.WriteString(word + " ")
		}
	}

	concepts := ExtractConcepts(b.String())

	require.Len(t, concepts, 10)
	assert.Equal(t, "worda", concepts[0].Name)
	assert.Equal(t, 1.0, concepts[0].Confidence)
	assert.Equal(t, "wordj", concepts[9].Name)
}

func TestExtractConcepts_TiesKeepFirstOccurrence(t *testing.T) {
	concepts := ExtractConcepts("zebra apple zebra apple")

	require.Len(t, concepts, 2)
	assert.Equal(t, "zebra", concepts[0].Name)
	assert.Equal(t, "apple", concepts[1].Name)
}

func TestExtractConcepts_ContextIsTruncated(t *testing.T) {
	text := strings.Repeat("ünïcode ", 30)

	concepts := ExtractConcepts(text)

	require.Len(t, concepts, 1)
	assert.Equal(t, 100, len([]rune(concepts[0].Context)))
}

func TestExtractConcepts_Empty(t *testing.T) {
	concepts := ExtractConcepts("")
	assert.NotNil(t, concepts)
	assert.Empty(t, concepts)
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello   world ", "hello world"},
		{"blocks", "<p>Hello</p><p>World</p>", "Hello World"},
		{"scripts dropped", "<div>Keep<script>drop()</script><style>p{}</style></div>", "Keep"},
		{"inline", "<p>a <b>bold</b> move</p>", "a bold move"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, plainText(tt.in))
		})
	}
}
