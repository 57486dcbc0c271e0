package vectorstore_test

import (
	"testing"

	"github.com/fundnexus/finrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name      string
		raw       map[string]interface{}
		wantError bool
	}{
		{
			name: "exact match",
			raw:  map[string]interface{}{"scenario_category": "Aggressive Growth"},
		},
		{
			name: "range operators",
			raw:  map[string]interface{}{"age": map[string]interface{}{">=": 30, "<=": 50}},
		},
		{
			name: "mixed",
			raw: map[string]interface{}{
				"scenario_category": "Conservative",
				"credit_score":      map[string]interface{}{">=": 700},
			},
		},
		{
			name:      "unknown operator",
			raw:       map[string]interface{}{"age": map[string]interface{}{"!=": 30}},
			wantError: true,
		},
		{
			name: "empty",
			raw:  map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := vectorstore.ParseFilter(tt.raw)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, vectorstore.ErrInvalidFilter)
				return
			}
			require.NoError(t, err)
			if len(tt.raw) == 0 {
				assert.Nil(t, f)
			} else {
				assert.Len(t, f, len(tt.raw))
			}
		})
	}
}

func TestFilter_Matches_Range(t *testing.T) {
	f, err := vectorstore.ParseFilter(map[string]interface{}{
		"age": map[string]interface{}{"<=": 40},
	})
	require.NoError(t, err)

	ages := []int{25, 40, 60}
	want := []bool{true, true, false}
	for i, age := range ages {
		got := f.Matches(map[string]interface{}{"age": age})
		assert.Equal(t, want[i], got, "age %d", age)
	}
}

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]interface{}
		metadata map[string]interface{}
		want     bool
	}{
		{
			name:     "string equality",
			raw:      map[string]interface{}{"scenario_category": "Conservative"},
			metadata: map[string]interface{}{"scenario_category": "Conservative"},
			want:     true,
		},
		{
			name:     "string inequality",
			raw:      map[string]interface{}{"scenario_category": "Conservative"},
			metadata: map[string]interface{}{"scenario_category": "Aggressive Growth"},
			want:     false,
		},
		{
			name:     "numeric equality across types",
			raw:      map[string]interface{}{"age": 30},
			metadata: map[string]interface{}{"age": int64(30)},
			want:     true,
		},
		{
			name:     "numeric string coercion",
			raw:      map[string]interface{}{"age": map[string]interface{}{">=": 30}},
			metadata: map[string]interface{}{"age": "35"},
			want:     true,
		},
		{
			name:     "missing field",
			raw:      map[string]interface{}{"age": 30},
			metadata: map[string]interface{}{"income": 50000.0},
			want:     false,
		},
		{
			name: "both bounds",
			raw: map[string]interface{}{
				"credit_score": map[string]interface{}{">=": 600, "<=": 750},
			},
			metadata: map[string]interface{}{"credit_score": 700},
			want:     true,
		},
		{
			name: "outside both bounds",
			raw: map[string]interface{}{
				"credit_score": map[string]interface{}{">=": 600, "<=": 750},
			},
			metadata: map[string]interface{}{"credit_score": 800},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := vectorstore.ParseFilter(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Matches(tt.metadata))
		})
	}
}
