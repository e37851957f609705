package domain

import (
	"errors"
	"fmt"
)

// MilestoneName identifies a configured growth checkpoint.
type MilestoneName string

// Canonical milestones, in curve order.
const (
	MilestoneBirth        MilestoneName = "birth"
	MilestoneWeaning      MilestoneName = "weaning"
	Milestone90d          MilestoneName = "90d"
	Milestone180d         MilestoneName = "180d"
	Milestone270d         MilestoneName = "270d"
	MilestoneFirstService MilestoneName = "first_service"
)

// MilestoneOrder returns the canonical milestone sequence.
func MilestoneOrder() []MilestoneName {
	return []MilestoneName{
		MilestoneBirth,
		MilestoneWeaning,
		Milestone90d,
		Milestone180d,
		Milestone270d,
		MilestoneFirstService,
	}
}

// MilestoneTarget is one (age, target weight) checkpoint of a growth curve.
type MilestoneTarget struct {
	Name     MilestoneName `json:"name" yaml:"name"`
	AgeDays  int           `json:"age_days" yaml:"age_days"`
	TargetKg float64       `json:"target_kg" yaml:"target_kg"`
}

// GrowthTargetConfig maps milestones to target weights. BySex replaces the
// default curve for subjects of that sex.
type GrowthTargetConfig struct {
	Milestones []MilestoneTarget         `json:"milestones" yaml:"milestones"`
	BySex      map[Sex][]MilestoneTarget `json:"by_sex,omitempty" yaml:"by_sex,omitempty"`
}

// DefaultGrowthTargets returns the built-in dairy replacement curve. Callers
// pass it explicitly when no configuration is supplied.
func DefaultGrowthTargets() GrowthTargetConfig {
	return GrowthTargetConfig{
		Milestones: []MilestoneTarget{
			{Name: MilestoneBirth, AgeDays: 0, TargetKg: 40},
			{Name: MilestoneWeaning, AgeDays: 60, TargetKg: 85},
			{Name: Milestone90d, AgeDays: 90, TargetKg: 120},
			{Name: Milestone180d, AgeDays: 180, TargetKg: 200},
			{Name: Milestone270d, AgeDays: 270, TargetKg: 275},
			{Name: MilestoneFirstService, AgeDays: 395, TargetKg: 380},
		},
		BySex: map[Sex][]MilestoneTarget{
			SexMale: {
				{Name: MilestoneBirth, AgeDays: 0, TargetKg: 45},
				{Name: MilestoneWeaning, AgeDays: 60, TargetKg: 95},
				{Name: Milestone90d, AgeDays: 90, TargetKg: 135},
				{Name: Milestone180d, AgeDays: 180, TargetKg: 230},
				{Name: Milestone270d, AgeDays: 270, TargetKg: 320},
				{Name: MilestoneFirstService, AgeDays: 395, TargetKg: 450},
			},
		},
	}
}

// CurveFor returns a copy of the curve that applies to the given sex.
func (c GrowthTargetConfig) CurveFor(sex Sex) []MilestoneTarget {
	curve := c.Milestones
	if override, ok := c.BySex[sex]; ok && len(override) > 0 {
		curve = override
	}
	out := make([]MilestoneTarget, len(curve))
	copy(out, curve)
	return out
}

// Validate rejects curves the engine cannot evaluate: unknown or duplicated
// milestone names, negative values and ages that are not strictly increasing.
func (c GrowthTargetConfig) Validate() error {
	var errs []error
	if len(c.Milestones) == 0 {
		errs = append(errs, errors.New("growth targets: no milestones configured"))
	}
	errs = append(errs, validateCurve("default", c.Milestones)...)
	for sex, curve := range c.BySex {
		switch sex {
		case SexFemale, SexMale, SexUnknown:
		default:
			errs = append(errs, fmt.Errorf("growth targets: unknown sex %q", sex))
		}
		errs = append(errs, validateCurve(string(sex), curve)...)
	}
	return errors.Join(errs...)
}

func validateCurve(label string, curve []MilestoneTarget) []error {
	known := make(map[MilestoneName]struct{})
	for _, name := range MilestoneOrder() {
		known[name] = struct{}{}
	}
	var errs []error
	seen := make(map[MilestoneName]struct{}, len(curve))
	for i, m := range curve {
		if _, ok := known[m.Name]; !ok {
			errs = append(errs, fmt.Errorf("growth targets %s: unknown milestone %q", label, m.Name))
		}
		if _, dup := seen[m.Name]; dup {
			errs = append(errs, fmt.Errorf("growth targets %s: duplicate milestone %q", label, m.Name))
		}
		seen[m.Name] = struct{}{}
		if m.AgeDays < 0 || m.TargetKg < 0 {
			errs = append(errs, fmt.Errorf("growth targets %s: milestone %q has negative age or target", label, m.Name))
		}
		if i > 0 && m.AgeDays <= curve[i-1].AgeDays {
			errs = append(errs, fmt.Errorf("growth targets %s: milestone %q age %d not after %d", label, m.Name, m.AgeDays, curve[i-1].AgeDays))
		}
	}
	return errs
}
