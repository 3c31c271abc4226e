package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	v := NewValidator(4)

	valid := `{
		"namedValues": {
			"Library Plate Barcode": ["LP001"],
			"Tracking Name": ["", "run-42"]
		},
		"range": {"sheet": "COMET Index Plates"}
	}`
	require.NoError(t, v.ValidateEvent([]byte(valid)))

	// Second call hits the compiled-schema cache
	require.NoError(t, v.ValidateEvent([]byte(valid)))
}

func TestValidateEvent_Rejections(t *testing.T) {
	v := NewValidator(4)

	cases := []struct {
		name string
		body string
	}{
		{"missing range", `{"namedValues": {"A": ["x"]}}`},
		{"missing namedValues", `{"range": {"sheet": "COMET Index Plates"}}`},
		{"empty sheet", `{"namedValues": {}, "range": {"sheet": ""}}`},
		{"values not arrays", `{"namedValues": {"A": "x"}, "range": {"sheet": "S"}}`},
		{"non-string values", `{"namedValues": {"A": [1]}, "range": {"sheet": "S"}}`},
		{"not an object", `[1, 2, 3]`},
		{"not json", `{{{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, v.ValidateEvent([]byte(tc.body)))
		})
	}
}

func TestValidateEvent_EmptyNamedValuesIsValid(t *testing.T) {
	// Shape-valid but routable to nothing; routing decides what to do with it
	v := NewValidator(4)
	assert.NoError(t, v.ValidateEvent([]byte(`{"namedValues": {}, "range": {"sheet": "Unknown Form"}}`)))
}
