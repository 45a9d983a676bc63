// Package scenario does the minimal JSON decoding internal/network and
// internal/model deliberately leave out of scope, grounded on
// brt08/backend/model/route_loader.go's rawRoute/rawStop pattern: a raw JSON
// shape is decoded, then converted field-by-field into the domain package's
// already-parsed record types (network.NodeRecord/LinkRecord,
// model.TrainSpec) before handing off to their constructors. This package is
// peripheral glue for cmd/*; it holds no simulation semantics of its own.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"

	"netrailsim/internal/model"
	"netrailsim/internal/network"
)

type rawPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type rawNode struct {
	ID                int     `json:"id"`
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	Desc              string  `json:"desc"`
	IsTerminal        bool    `json:"is_terminal"`
	TerminalDwellTime float64 `json:"terminal_dwell_time_s"`
	XScale            float64 `json:"x_scale"`
	YScale            float64 `json:"y_scale"`
}

type rawLink struct {
	ID             int        `json:"id"`
	FromNodeID     int        `json:"from_node_id"`
	ToNodeID       int        `json:"to_node_id"`
	LengthM        float64    `json:"length_m"`
	FreeFlowSpeedMS float64   `json:"free_flow_speed_ms"`
	SignalID       int        `json:"signal_id"`
	Grade          float64    `json:"grade"`
	Curvature      float64    `json:"curvature"`
	Directions     int        `json:"directions"`
	SpeedVariation float64    `json:"speed_variation"`
	HasCatenary    bool       `json:"has_catenary"`
	SignalsAtNodes []int      `json:"signals_at_nodes"`
	Region         string     `json:"region"`
	LengthScale    float64    `json:"length_scale"`
	SpeedScale     float64    `json:"speed_scale"`
	Points         []rawPoint `json:"points"`
}

type rawNetwork struct {
	Nodes []rawNode `json:"nodes"`
	Links []rawLink `json:"links"`
}

// LoadNetwork decodes a network JSON document and builds a network.Network.
func LoadNetwork(r io.Reader) (*network.Network, error) {
	var raw rawNetwork
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("scenario: decode network: %w", err)
	}

	nodeRecs := make([]network.NodeRecord, len(raw.Nodes))
	for i, n := range raw.Nodes {
		nodeRecs[i] = network.NodeRecord{
			UserID: n.ID, X: n.X, Y: n.Y, Desc: n.Desc,
			IsTerminal: n.IsTerminal, TerminalDwellTime: n.TerminalDwellTime,
			XScale: n.XScale, YScale: n.YScale,
		}
	}

	linkRecs := make([]network.LinkRecord, len(raw.Links))
	for i, l := range raw.Links {
		points := make([]network.Point, len(l.Points))
		for j, p := range l.Points {
			points[j] = network.Point{X: p.X, Y: p.Y}
		}
		linkRecs[i] = network.LinkRecord{
			UserID: l.ID, FromNodeUserID: l.FromNodeID, ToNodeUserID: l.ToNodeID,
			Length: l.LengthM, FreeFlowSpeed: l.FreeFlowSpeedMS, SignalID: l.SignalID,
			Grade: l.Grade, Curvature: l.Curvature, Directions: l.Directions,
			SpeedVariation: l.SpeedVariation, HasCatenary: l.HasCatenary,
			SignalsAtNodes: l.SignalsAtNodes, Region: l.Region,
			LengthScale: l.LengthScale, SpeedScale: l.SpeedScale, Points: points,
		}
	}

	return network.NewNetwork(nodeRecs, linkRecs)
}

type rawBattery struct {
	MaxCapacityKWh float64 `json:"max_capacity_kwh"`
	DoD            float64 `json:"dod"`
	DischargeCRate float64 `json:"discharge_c_rate"`
	RechargeCRate  float64 `json:"recharge_c_rate"`
	LowerSOC       float64 `json:"lower_soc"`
	UpperSOC       float64 `json:"upper_soc"`
	InitialSOC     float64 `json:"initial_soc"`
}

type rawTank struct {
	MaxCapacityL    float64 `json:"max_capacity_l"`
	MinDoD          float64 `json:"min_dod"`
	InitialFraction float64 `json:"initial_fraction"`
}

type rawLocomotive struct {
	Count              int        `json:"count"`
	PowerType          string     `json:"power_type"`
	Method             string     `json:"method"`
	MaxPowerKW         float64    `json:"max_power_kw"`
	TransmissionEff    float64    `json:"transmission_eff"`
	LengthM            float64    `json:"length_m"`
	DragCoef           float64    `json:"drag_coef"`
	FrontalAreaSqFt    float64    `json:"frontal_area_sqft"`
	WeightTons         float64    `json:"weight_tons"`
	Axles              float64    `json:"axles"`
	NotchCount         int        `json:"notch_count"`
	MaxAchievableNotch int        `json:"max_achievable_notch"`
	AuxLoadKW          float64    `json:"aux_load_kw"`
	Battery            *rawBattery `json:"battery"`
	Tank               *rawTank    `json:"tank"`
}

type rawCar struct {
	Count             int         `json:"count"`
	Type              string      `json:"type"`
	LengthM           float64     `json:"length_m"`
	DragCoef          float64     `json:"drag_coef"`
	FrontalAreaSqFt   float64     `json:"frontal_area_sqft"`
	CurrentWeightTons float64     `json:"current_weight_tons"`
	EmptyWeightTons   float64     `json:"empty_weight_tons"`
	Axles             float64     `json:"axles"`
	Battery           *rawBattery `json:"battery"`
	Tank              *rawTank    `json:"tank"`
}

type rawTrain struct {
	ID                  int             `json:"id"`
	StartTimeS          float64         `json:"start_time_s"`
	FrictionCoefficient float64         `json:"friction_coefficient"`
	Path                []int           `json:"path"`
	Optimize            bool            `json:"optimize"`
	Locomotives         []rawLocomotive `json:"locomotives"`
	Cars                []rawCar        `json:"cars"`
}

type rawTrains struct {
	Trains []rawTrain `json:"trains"`
}

var powerTypeByName = map[string]model.PowerType{
	"diesel":           model.Diesel,
	"electric":         model.Electric,
	"biodiesel":        model.Biodiesel,
	"diesel_electric":  model.DieselElectric,
	"diesel_hybrid":    model.DieselHybrid,
	"hydrogen_hybrid":  model.HydrogenHybrid,
	"biodiesel_hybrid": model.BiodieselHybrid,
}

var powerMethodByName = map[string]model.PowerMethod{
	"series":   model.Series,
	"parallel": model.Parallel,
}

var carTypeByName = map[string]model.CarType{
	"cargo":                     model.Cargo,
	"diesel_tender":             model.DieselTender,
	"biodiesel_tender":          model.BiodieselTender,
	"battery_tender":            model.BatteryTender,
	"hydrogen_fuel_cell_tender": model.HydrogenFuelCellTender,
}

func convertBattery(b *rawBattery) *model.BatterySpec {
	if b == nil {
		return nil
	}
	return &model.BatterySpec{
		MaxCapacityKWh: b.MaxCapacityKWh, DoD: b.DoD, DischargeCRate: b.DischargeCRate,
		RechargeCRate: b.RechargeCRate, LowerSOC: b.LowerSOC, UpperSOC: b.UpperSOC, InitialSOC: b.InitialSOC,
	}
}

func convertTank(t *rawTank) *model.TankSpec {
	if t == nil {
		return nil
	}
	return &model.TankSpec{MaxCapacityL: t.MaxCapacityL, MinDoD: t.MinDoD, InitialFraction: t.InitialFraction}
}

// LoadTrains decodes a trains JSON document, expands each sparse path
// against net, and builds model.Train instances.
func LoadTrains(r io.Reader, net *network.Network) ([]*model.Train, error) {
	var raw rawTrains
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("scenario: decode trains: %w", err)
	}

	trains := make([]*model.Train, 0, len(raw.Trains))
	for _, rt := range raw.Trains {
		expanded, err := net.ExpandPath(rt.Path)
		if err != nil {
			return nil, fmt.Errorf("scenario: train %d: %w", rt.ID, err)
		}

		locos := make([]model.LocomotiveSpec, len(rt.Locomotives))
		for i, rl := range rt.Locomotives {
			pt, ok := powerTypeByName[rl.PowerType]
			if !ok {
				return nil, fmt.Errorf("scenario: train %d: unknown power_type %q", rt.ID, rl.PowerType)
			}
			method := powerMethodByName[rl.Method]
			locos[i] = model.LocomotiveSpec{
				Count: rl.Count, PowerType: pt, Method: method, MaxPowerKW: rl.MaxPowerKW,
				TransmissionEff: rl.TransmissionEff, LengthM: rl.LengthM, DragCoef: rl.DragCoef,
				FrontalAreaSqFt: rl.FrontalAreaSqFt, WeightTons: rl.WeightTons, Axles: rl.Axles,
				NotchCount: rl.NotchCount, MaxAchievableNotch: rl.MaxAchievableNotch, AuxLoadKW: rl.AuxLoadKW,
				Battery: convertBattery(rl.Battery), Tank: convertTank(rl.Tank),
			}
		}

		cars := make([]model.CarSpec, len(rt.Cars))
		for i, rc := range rt.Cars {
			ct, ok := carTypeByName[rc.Type]
			if !ok {
				return nil, fmt.Errorf("scenario: train %d: unknown car type %q", rt.ID, rc.Type)
			}
			cars[i] = model.CarSpec{
				Count: rc.Count, Type: ct, LengthM: rc.LengthM, DragCoef: rc.DragCoef,
				FrontalAreaSqFt: rc.FrontalAreaSqFt, CurrentWeightTons: rc.CurrentWeightTons,
				EmptyWeightTons: rc.EmptyWeightTons, Axles: rc.Axles,
				Battery: convertBattery(rc.Battery), Tank: convertTank(rc.Tank),
			}
		}

		spec := model.TrainSpec{
			UserID: rt.ID, StartTimeS: rt.StartTimeS, FrictionCoefficient: rt.FrictionCoefficient,
			Locomotives: locos, Cars: cars, Optimize: rt.Optimize,
		}
		tr, err := model.BuildTrain(expanded, spec)
		if err != nil {
			return nil, fmt.Errorf("scenario: train %d: %w", rt.ID, err)
		}
		trains = append(trains, tr)
	}
	return trains, nil
}
