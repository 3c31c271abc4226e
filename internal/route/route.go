package route

import (
	"fmt"
	"time"
)

// Action is a downstream-facing operation identifier. The string values are
// the wire contract with the processing service and must not change.
type Action string

const (
	ActionExternalSampleShipment Action = "external_sample_shipment"
	ActionSampleDatabase         Action = "sample_database"
	ActionDraw96PlateMap         Action = "draw_96_plate_map"
	ActionConcat96To384          Action = "concat_96_384"
	ActionBindIndexPlate         Action = "bind_index_plate"
	ActionMetadataLookup         Action = "metadata_lookup"
	ActionUpdateRipeSamples      Action = "update_ripe_samples"
)

// DelayClass selects the propagation delay applied before the first send.
// The delay exists to let the separate attachment-upload pipeline finish
// before the receiving endpoint looks for files.
type DelayClass int

const (
	DelayDefault DelayClass = iota
	// DelayLong is used for the input-plate form, which tends to carry
	// larger plate-layout attachments.
	DelayLong
)

// Route is a static mapping from a form name to an action, its required
// field labels and its delivery behavior. Routes are defined at startup and
// never mutated.
type Route struct {
	Form           string
	Action         Action
	RequiredFields []string
	// NotifyOnly routes skip extraction and the processing targets; the
	// coordinator builds a chat message from the required fields instead.
	NotifyOnly bool
	Delay      DelayClass
}

// Form names as they appear on the sample-tracking response spreadsheet tabs.
const (
	FormDPHSampleShipment          = "COMET DPH Sample Shipment"
	FormCollaboratorSampleShipment = "COMET Collaborator Sample Shipment"
	FormNewSamples                 = "COMET New Samples"
	FormInputPlate                 = "COMET Input Plate"
	Form384PlateConcatenation      = "COMET 384 Plate Concatenation"
	FormIndexPlates                = "COMET Index Plates"
	FormSequencingRuns             = "COMET Sequencing Runs"
	FormMetadataLookup             = "COMET Metadata Lookup"
	FormCherryPicking              = "COMET Cherry Picking"
)

var routes = []Route{
	{
		Form:           FormDPHSampleShipment,
		Action:         ActionExternalSampleShipment,
		RequiredFields: []string{"Metadata Spreadsheet", "Project ID"},
	},
	{
		Form:           FormCollaboratorSampleShipment,
		Action:         ActionExternalSampleShipment,
		RequiredFields: []string{"Metadata Spreadsheet", "Project ID", "Collaborator Name"},
	},
	{
		Form:           FormNewSamples,
		Action:         ActionSampleDatabase,
		RequiredFields: []string{"Sample Spreadsheet", "Project ID"},
	},
	{
		Form:           FormInputPlate,
		Action:         ActionDraw96PlateMap,
		RequiredFields: []string{"Working Plate Barcode", "Plate Layout File", "Sample Source"},
		Delay:          DelayLong,
	},
	{
		Form:   Form384PlateConcatenation,
		Action: ActionConcat96To384,
		RequiredFields: []string{
			"Quadrant 1 Barcode",
			"Quadrant 2 Barcode",
			"Quadrant 3 Barcode",
			"Quadrant 4 Barcode",
			"Destination 384 Barcode",
		},
	},
	{
		Form:           FormIndexPlates,
		Action:         ActionBindIndexPlate,
		RequiredFields: []string{"Library Plate Barcode", "Index Plate File", "Tracking Name"},
	},
	{
		Form:           FormSequencingRuns,
		RequiredFields: []string{"COMET 384 Sequencing Plate", "COMET Run ID"},
		NotifyOnly:     true,
	},
	{
		Form:           FormMetadataLookup,
		Action:         ActionMetadataLookup,
		RequiredFields: []string{"CZB IDs", "Requestor Email"},
	},
	{
		Form:           FormCherryPicking,
		Action:         ActionUpdateRipeSamples,
		RequiredFields: []string{"Project ID"},
	},
}

// Table resolves form names to routes. Build it once at startup.
type Table struct {
	byForm map[string]*Route
}

// NewTable builds the routing table from the static route list. It fails if
// two routes share a form name, so a bad registration is caught at startup
// rather than silently shadowing an existing form.
func NewTable() (*Table, error) {
	t := &Table{byForm: make(map[string]*Route, len(routes))}
	for i := range routes {
		r := &routes[i]
		if _, ok := t.byForm[r.Form]; ok {
			return nil, fmt.Errorf("duplicate route for form %q", r.Form)
		}
		t.byForm[r.Form] = r
	}
	return t, nil
}

// Resolve returns the route for a form name. Unknown forms return ok=false;
// that is a silent skip, not an error, because new forms only take effect
// once they are registered here.
func (t *Table) Resolve(formName string) (*Route, bool) {
	r, ok := t.byForm[formName]
	return r, ok
}

// All returns every registered route in declaration order
func (t *Table) All() []Route {
	return routes
}

// DelayFor maps a route's delay class to a concrete duration
func (r *Route) DelayFor(defaultDelay, longDelay time.Duration) time.Duration {
	if r.Delay == DelayLong {
		return longDelay
	}
	return defaultDelay
}
