package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlens/internal/channels"
	"leadlens/internal/models"
)

func TestJSONScan(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    string
		wantErr bool
	}{
		{"sqlite text", `{"path":"/"}`, `{"path":"/"}`, false},
		{"postgres bytes", []byte(`{"a":1}`), `{"a":1}`, false},
		{"null", nil, "", false},
		{"invalid document", "{oops", "", true},
		{"unsupported type", 42, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j models.JSON
			err := j.Scan(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(j))
		})
	}
}

func TestJSONValueAndMarshal(t *testing.T) {
	v, err := models.JSON(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = models.JSON(`{"a":1}`).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	out, err := json.Marshal(struct {
		Payload models.JSON `json:"payload"`
		Empty   models.JSON `json:"empty"`
	}{Payload: models.JSON(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"a":1},"empty":null}`, string(out))
}

func TestSessionAttributionRoundTrip(t *testing.T) {
	utm := channels.UTM{Source: "google", Medium: "cpc", Campaign: "spring", Content: "hero", Term: "training"}
	ids := channels.ClickIDs{GCLID: "g1", LiFatID: "li"}

	var s models.Session
	s.SetUTM(utm)
	s.SetClickIDs(ids)

	assert.Equal(t, utm, s.UTM())
	assert.Equal(t, ids, s.ClickIDs())
}
