package scenario_test

import (
	"strings"
	"testing"

	"netrailsim/internal/scenario"

	"github.com/stretchr/testify/require"
)

const networkJSON = `
{
  "nodes": [
    {"id": 1, "x": 0, "y": 0, "is_terminal": true},
    {"id": 2, "x": 1000, "y": 0},
    {"id": 3, "x": 2500, "y": 0, "is_terminal": true}
  ],
  "links": [
    {"id": 101, "from_node_id": 1, "to_node_id": 2, "length_m": 1000, "free_flow_speed_ms": 20, "directions": 1},
    {"id": 102, "from_node_id": 2, "to_node_id": 3, "length_m": 1500, "free_flow_speed_ms": 15, "directions": 1}
  ]
}`

const trainsJSON = `
{
  "trains": [
    {
      "id": 1,
      "start_time_s": 0,
      "friction_coefficient": 0.002,
      "path": [1, 3],
      "locomotives": [
        {"count": 1, "power_type": "diesel", "max_power_kw": 2000, "transmission_eff": 0.9,
         "length_m": 20, "drag_coef": 0.8, "frontal_area_sqft": 120, "weight_tons": 120, "axles": 6,
         "notch_count": 8, "max_achievable_notch": 8, "aux_load_kw": 10,
         "tank": {"max_capacity_l": 10000, "min_dod": 0.05, "initial_fraction": 1}}
      ],
      "cars": [
        {"count": 2, "type": "cargo", "length_m": 15, "drag_coef": 0.9, "frontal_area_sqft": 100,
         "current_weight_tons": 80, "empty_weight_tons": 20, "axles": 4}
      ]
    }
  ]
}`

func TestLoadNetwork_BuildsNetworkFromJSON(t *testing.T) {
	net, err := scenario.LoadNetwork(strings.NewReader(networkJSON))
	require.NoError(t, err)

	path, err := net.ShortestPath(1, 3)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, path)
}

func TestLoadTrains_ExpandsPathAndBuildsTrain(t *testing.T) {
	net, err := scenario.LoadNetwork(strings.NewReader(networkJSON))
	require.NoError(t, err)

	trains, err := scenario.LoadTrains(strings.NewReader(trainsJSON), net)
	require.NoError(t, err)
	require.Len(t, trains, 1)

	tr := trains[0]
	require.Equal(t, 1, tr.ID)
	require.Equal(t, []int{1, 2, 3}, tr.Path, "sparse path [1,3] must be spliced through node 2")
	require.Len(t, tr.Vehicles, 3)
}

func TestLoadTrains_UnknownPowerTypeRejected(t *testing.T) {
	net, err := scenario.LoadNetwork(strings.NewReader(networkJSON))
	require.NoError(t, err)

	bad := strings.Replace(trainsJSON, `"power_type": "diesel"`, `"power_type": "nuclear"`, 1)
	_, err = scenario.LoadTrains(strings.NewReader(bad), net)
	require.Error(t, err)
}

func TestLoadNetwork_InvalidJSON(t *testing.T) {
	_, err := scenario.LoadNetwork(strings.NewReader("{not json"))
	require.Error(t, err)
}
