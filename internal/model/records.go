package model

import "fmt"

// LocomotiveSpec is the already-parsed external locomotive specification
// that appears, repeated per distinct loadout, inside a train input record
// (spec.md §6: "list of locomotive specifications (count, max-power, drag,
// frontal area, weight, axles, power-type tag, max achievable notch)").
// Reading this off disk/CLI is the explicitly out-of-scope "file parsing"
// collaborator; constructing Locomotives from an already-populated spec is
// not.
type LocomotiveSpec struct {
	Count              int
	PowerType          PowerType
	Method             PowerMethod
	MaxPowerKW         float64
	TransmissionEff    float64
	LengthM            float64
	DragCoef           float64
	FrontalAreaSqFt    float64
	WeightTons         float64 // external unit; converted to kg on ingest (spec.md §6)
	Axles              float64
	NotchCount         int
	MaxAchievableNotch int
	AuxLoadKW          float64
	Battery            *BatterySpec
	Tank               *TankSpec
}

// CarSpec is the already-parsed external car specification (spec.md §6:
// "list of car specifications (count, drag, frontal area, current weight,
// empty weight, axles, car-type tag)").
type CarSpec struct {
	Count             int
	Type              CarType
	LengthM           float64
	DragCoef          float64
	FrontalAreaSqFt   float64
	CurrentWeightTons float64
	EmptyWeightTons   float64
	Axles             float64
	Battery           *BatterySpec
	Tank              *TankSpec
}

// BatterySpec is the already-parsed battery parameter set for a tender or
// hybrid locomotive that carries one.
type BatterySpec struct {
	MaxCapacityKWh, DoD, DischargeCRate, RechargeCRate, LowerSOC, UpperSOC, InitialSOC float64
}

// TankSpec is the already-parsed fuel tank parameter set for a tender or
// fuel-burning locomotive that carries one.
type TankSpec struct {
	MaxCapacityL, MinDoD, InitialFraction float64
}

// TrainSpec is the already-parsed external train input record (spec.md §6).
// Path is the sparse, possibly gapped, list of node user ids; expand it
// through network.Network.ExpandPath before calling BuildTrain.
type TrainSpec struct {
	UserID              int
	StartTimeS          float64
	FrictionCoefficient float64
	Locomotives         []LocomotiveSpec
	Cars                []CarSpec
	Optimize            bool
}

const tonsToKg = 1000.0

func buildBattery(s *BatterySpec) (*Battery, error) {
	if s == nil {
		return nil, nil
	}
	return NewBattery(BatteryParams{
		MaxCapacityKWh: s.MaxCapacityKWh,
		DoD:            s.DoD,
		DischargeCRate: s.DischargeCRate,
		RechargeCRate:  s.RechargeCRate,
		LowerSOC:       s.LowerSOC,
		UpperSOC:       s.UpperSOC,
	}, s.InitialSOC)
}

func buildTank(s *TankSpec) (*Tank, error) {
	if s == nil {
		return nil, nil
	}
	return NewTank(s.MaxCapacityL, s.MinDoD, s.InitialFraction)
}

func buildLocomotives(spec LocomotiveSpec) ([]*Locomotive, error) {
	out := make([]*Locomotive, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		battery, err := buildBattery(spec.Battery)
		if err != nil {
			return nil, fmt.Errorf("locomotive battery: %w", err)
		}
		tank, err := buildTank(spec.Tank)
		if err != nil {
			return nil, fmt.Errorf("locomotive tank: %w", err)
		}
		massKg := spec.WeightTons * tonsToKg
		loco, err := NewLocomotive(spec.PowerType, spec.Method, spec.MaxPowerKW, spec.TransmissionEff,
			spec.LengthM, spec.DragCoef, spec.FrontalAreaSqFt, massKg, massKg, spec.Axles,
			spec.NotchCount, spec.MaxAchievableNotch, spec.AuxLoadKW, battery, tank)
		if err != nil {
			return nil, fmt.Errorf("locomotive %d of %d: %w", i, spec.Count, err)
		}
		out = append(out, loco)
	}
	return out, nil
}

func buildCars(spec CarSpec) ([]*Car, error) {
	out := make([]*Car, 0, spec.Count)
	for i := 0; i < spec.Count; i++ {
		battery, err := buildBattery(spec.Battery)
		if err != nil {
			return nil, fmt.Errorf("car battery: %w", err)
		}
		tank, err := buildTank(spec.Tank)
		if err != nil {
			return nil, fmt.Errorf("car tank: %w", err)
		}
		car, err := NewCar(spec.Type, spec.EmptyWeightTons*tonsToKg, spec.CurrentWeightTons*tonsToKg,
			spec.LengthM, spec.DragCoef, spec.FrontalAreaSqFt, spec.Axles, battery, tank)
		if err != nil {
			return nil, fmt.Errorf("car %d of %d: %w", i, spec.Count, err)
		}
		out = append(out, car)
	}
	return out, nil
}

// BuildTrain constructs a Train from a TrainSpec and an already-expanded path
// (node user ids with every gap closed by shortest path, spec.md §6).
func BuildTrain(expandedPath []int, spec TrainSpec) (*Train, error) {
	var locos []*Locomotive
	for _, ls := range spec.Locomotives {
		built, err := buildLocomotives(ls)
		if err != nil {
			return nil, err
		}
		locos = append(locos, built...)
	}
	var cars []*Car
	for _, cs := range spec.Cars {
		built, err := buildCars(cs)
		if err != nil {
			return nil, err
		}
		cars = append(cars, built...)
	}
	return NewTrain(spec.UserID, expandedPath, spec.StartTimeS, spec.FrictionCoefficient, locos, cars, spec.Optimize)
}
