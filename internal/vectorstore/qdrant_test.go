package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
}

func TestQdrantConfig_Validate(t *testing.T) {
	valid := QdrantConfig{
		Host: "localhost", Port: 6334, Collection: "financial_profiles", VectorSize: 384,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*QdrantConfig)
	}{
		{"missing host", func(c *QdrantConfig) { c.Host = "" }},
		{"invalid port", func(c *QdrantConfig) { c.Port = 0 }},
		{"port too large", func(c *QdrantConfig) { c.Port = 70000 }},
		{"missing collection", func(c *QdrantConfig) { c.Collection = "" }},
		{"uppercase collection", func(c *QdrantConfig) { c.Collection = "Profiles" }},
		{"zero vector size", func(c *QdrantConfig) { c.VectorSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", status.Error(grpccodes.Unavailable, "down"), true},
		{"deadline", status.Error(grpccodes.DeadlineExceeded, "slow"), true},
		{"aborted", status.Error(grpccodes.Aborted, "conflict"), true},
		{"resource exhausted", status.Error(grpccodes.ResourceExhausted, "quota"), true},
		{"not found", status.Error(grpccodes.NotFound, "missing"), false},
		{"invalid argument", status.Error(grpccodes.InvalidArgument, "bad"), false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, buildFilter(nil))
	assert.Nil(t, buildFilter(Filter{}))

	f, err := ParseFilter(map[string]interface{}{
		"scenario_category": "Conservative",
		"age":               map[string]interface{}{">=": 30, "<=": 50},
	})
	require.NoError(t, err)

	built := buildFilter(f)
	require.NotNil(t, built)
	// One keyword match plus two range conditions.
	assert.Len(t, built.Must, 3)
}

func TestPointID_Deterministic(t *testing.T) {
	a := pointID("profile_7")
	b := pointID("profile_7")
	c := pointID("profile_8")

	assert.Equal(t, a.GetUuid(), b.GetUuid())
	assert.NotEqual(t, a.GetUuid(), c.GetUuid())
}
