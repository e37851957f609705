package domain

import (
	"strings"
	"testing"
)

func TestDefaultGrowthTargetsValidate(t *testing.T) {
	if err := DefaultGrowthTargets().Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
}

func TestGrowthTargetsValidateCollectsErrors(t *testing.T) {
	cfg := GrowthTargetConfig{
		Milestones: []MilestoneTarget{
			{Name: MilestoneBirth, AgeDays: 0, TargetKg: 40},
			{Name: "yearling", AgeDays: 365, TargetKg: 300},
			{Name: MilestoneWeaning, AgeDays: 60, TargetKg: -1},
			{Name: MilestoneWeaning, AgeDays: 90, TargetKg: 100},
		},
		BySex: map[Sex][]MilestoneTarget{"steer": {{Name: MilestoneBirth}}},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, fragment := range []string{`unknown milestone "yearling"`, "negative age or target", "not after 365", `duplicate milestone "weaning"`, `unknown sex "steer"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %v", fragment, err)
		}
	}
	if err := (GrowthTargetConfig{}).Validate(); err == nil {
		t.Fatalf("expected empty config to be rejected")
	}
}

func TestCurveForReturnsCopy(t *testing.T) {
	cfg := DefaultGrowthTargets()
	male := cfg.CurveFor(SexMale)
	if male[0].TargetKg != 45 {
		t.Fatalf("expected male override, got %v", male[0].TargetKg)
	}
	male[0].TargetKg = 1
	if cfg.BySex[SexMale][0].TargetKg != 45 {
		t.Fatalf("expected CurveFor to return a copy")
	}
	if got := cfg.CurveFor(SexUnknown); got[0].TargetKg != 40 {
		t.Fatalf("expected default curve for unknown sex, got %v", got[0].TargetKg)
	}
}
