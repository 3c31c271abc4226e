package extract

import (
	"testing"

	"cometrelay/internal/model"
	"cometrelay/internal/route"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoute() *route.Route {
	return &route.Route{
		Form:           "Test Form",
		Action:         route.ActionBindIndexPlate,
		RequiredFields: []string{"Library Plate Barcode", "Index Plate File", "Tracking Name"},
	}
}

func TestExtract(t *testing.T) {
	event := &model.InboundEvent{
		NamedValues: map[string][]string{
			"Library Plate Barcode": {"LP001"},
			"Index Plate File":      {"https://drive.example.com/file?id=abc"},
			"Tracking Name":         {"run-42"},
			"Extra Field":           {"ignored"},
		},
	}

	payload, err := Extract(event, testRoute())
	require.NoError(t, err)

	// Exactly the action plus the required fields, nothing else
	assert.Equal(t, model.RequestPayload{
		"action":                "bind_index_plate",
		"Library Plate Barcode": "LP001",
		"Index Plate File":      "https://drive.example.com/file?id=abc",
		"Tracking Name":         "run-42",
	}, payload)
}

func TestExtract_FirstNonEmptyWins(t *testing.T) {
	event := &model.InboundEvent{
		NamedValues: map[string][]string{
			"Library Plate Barcode": {"", "real-value"},
			"Index Plate File":      {"f"},
			"Tracking Name":         {"", "", "run-42", "run-43"},
		},
	}

	payload, err := Extract(event, testRoute())
	require.NoError(t, err)
	assert.Equal(t, "real-value", payload["Library Plate Barcode"])
	assert.Equal(t, "run-42", payload["Tracking Name"])
}

func TestExtract_EmptyField(t *testing.T) {
	event := &model.InboundEvent{
		NamedValues: map[string][]string{
			"Library Plate Barcode": {"", ""},
			"Index Plate File":      {"f"},
			"Tracking Name":         {"run-42"},
		},
	}

	payload, err := Extract(event, testRoute())
	assert.Nil(t, payload)

	var emptyErr *EmptyFieldError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "Library Plate Barcode", emptyErr.Field)
	assert.Equal(t, "Test Form", emptyErr.Form)
}

func TestExtract_MissingField(t *testing.T) {
	event := &model.InboundEvent{
		NamedValues: map[string][]string{
			"Library Plate Barcode": {"LP001"},
			"Index Plate File":      {"f"},
		},
	}

	payload, err := Extract(event, testRoute())
	assert.Nil(t, payload)

	var missingErr *MissingFieldError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "Tracking Name", missingErr.Field)
	assert.Equal(t, "Test Form", missingErr.Form)
}

func TestExtract_DoesNotMutateEvent(t *testing.T) {
	event := &model.InboundEvent{
		NamedValues: map[string][]string{
			"Library Plate Barcode": {"LP001"},
			"Index Plate File":      {"f"},
			"Tracking Name":         {"run-42"},
		},
	}

	_, err := Extract(event, testRoute())
	require.NoError(t, err)
	assert.Len(t, event.NamedValues, 3)
	assert.Equal(t, []string{"LP001"}, event.NamedValues["Library Plate Barcode"])
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", FirstNonEmpty([]string{"a", "b"}))
	assert.Equal(t, "b", FirstNonEmpty([]string{"", "b"}))
	assert.Equal(t, "", FirstNonEmpty([]string{"", ""}))
	assert.Equal(t, "", FirstNonEmpty(nil))
}
