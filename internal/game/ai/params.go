package ai

import (
	"errors"
	"fmt"
)

// Params holds the scoring weights used by the strategist. Every value is
// tunable through configuration.
type Params struct {
	// TopN is the window of best candidates picked from uniformly.
	TopN int `mapstructure:"top_n"`
	// MinSourceGarrison is exclusive: a source needs more units than this.
	MinSourceGarrison int `mapstructure:"min_source_garrison"`

	CaptureBonus   float64 `mapstructure:"capture_bonus"`
	SurplusWeight  float64 `mapstructure:"surplus_weight"`
	AttritionRatio float64 `mapstructure:"attrition_ratio"`
	AttritionBonus float64 `mapstructure:"attrition_bonus"`
	NeutralBonus   float64 `mapstructure:"neutral_bonus"`

	ProximityRange float64 `mapstructure:"proximity_range"`
	ProximityBonus float64 `mapstructure:"proximity_bonus"`
	RadiusWeight   float64 `mapstructure:"radius_weight"`

	ThreatRadius  float64 `mapstructure:"threat_radius"`
	ThreatPenalty float64 `mapstructure:"threat_penalty"`

	GatewayRadius float64 `mapstructure:"gateway_radius"`
	GatewayBonus  float64 `mapstructure:"gateway_bonus"`

	// SendFraction of the dispatchable units is sent when that alone still
	// captures the target.
	SendFraction float64 `mapstructure:"send_fraction"`
}

// DefaultParams returns the stock tuning
func DefaultParams() Params {
	return Params{
		TopN:              3,
		MinSourceGarrison: 2,
		CaptureBonus:      100,
		SurplusWeight:     2,
		AttritionRatio:    0.7,
		AttritionBonus:    30,
		NeutralBonus:      50,
		ProximityRange:    500,
		ProximityBonus:    40,
		RadiusWeight:      0.5,
		ThreatRadius:      250,
		ThreatPenalty:     50,
		GatewayRadius:     200,
		GatewayBonus:      10,
		SendFraction:      0.8,
	}
}

var errInvalidParams = errors.New("invalid strategist params")

// Validate checks the params for values the scorer cannot work with
func (p Params) Validate() error {
	if p.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1, got %d", errInvalidParams, p.TopN)
	}
	if p.MinSourceGarrison < 1 {
		return fmt.Errorf("%w: min_source_garrison must be at least 1, got %d", errInvalidParams, p.MinSourceGarrison)
	}
	if p.SendFraction <= 0 || p.SendFraction > 1 {
		return fmt.Errorf("%w: send_fraction must be in (0,1], got %v", errInvalidParams, p.SendFraction)
	}
	if p.ProximityRange <= 0 {
		return fmt.Errorf("%w: proximity_range must be positive", errInvalidParams)
	}
	if p.ThreatRadius < 0 || p.GatewayRadius < 0 {
		return fmt.Errorf("%w: radii must not be negative", errInvalidParams)
	}
	return nil
}
