package route

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)
	assert.Len(t, table.All(), 9)
}

func TestTable_ResolveKnownForms(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	cases := []struct {
		form       string
		action     Action
		fieldCount int
		notifyOnly bool
	}{
		{FormDPHSampleShipment, ActionExternalSampleShipment, 2, false},
		{FormCollaboratorSampleShipment, ActionExternalSampleShipment, 3, false},
		{FormNewSamples, ActionSampleDatabase, 2, false},
		{FormInputPlate, ActionDraw96PlateMap, 3, false},
		{Form384PlateConcatenation, ActionConcat96To384, 5, false},
		{FormIndexPlates, ActionBindIndexPlate, 3, false},
		{FormSequencingRuns, "", 2, true},
		{FormMetadataLookup, ActionMetadataLookup, 2, false},
		{FormCherryPicking, ActionUpdateRipeSamples, 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.form, func(t *testing.T) {
			r, ok := table.Resolve(tc.form)
			require.True(t, ok)
			assert.Equal(t, tc.action, r.Action)
			assert.Len(t, r.RequiredFields, tc.fieldCount)
			assert.Equal(t, tc.notifyOnly, r.NotifyOnly)
		})
	}
}

func TestTable_ResolveUnknownForm(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	for _, form := range []string{"Unknown Form", "", "comet index plates", "COMET Index Plates "} {
		r, ok := table.Resolve(form)
		assert.False(t, ok, "form %q should not resolve", form)
		assert.Nil(t, r)
	}
}

func TestRoute_DelayFor(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)

	defaultDelay := 30 * time.Second
	longDelay := 180 * time.Second

	inputPlate, ok := table.Resolve(FormInputPlate)
	require.True(t, ok)
	assert.Equal(t, longDelay, inputPlate.DelayFor(defaultDelay, longDelay))

	indexPlates, ok := table.Resolve(FormIndexPlates)
	require.True(t, ok)
	assert.Equal(t, defaultDelay, indexPlates.DelayFor(defaultDelay, longDelay))
}

func TestActionWireValues(t *testing.T) {
	// These strings are the wire contract with the processing service
	assert.Equal(t, "external_sample_shipment", string(ActionExternalSampleShipment))
	assert.Equal(t, "sample_database", string(ActionSampleDatabase))
	assert.Equal(t, "draw_96_plate_map", string(ActionDraw96PlateMap))
	assert.Equal(t, "concat_96_384", string(ActionConcat96To384))
	assert.Equal(t, "bind_index_plate", string(ActionBindIndexPlate))
	assert.Equal(t, "metadata_lookup", string(ActionMetadataLookup))
	assert.Equal(t, "update_ripe_samples", string(ActionUpdateRipeSamples))
}
