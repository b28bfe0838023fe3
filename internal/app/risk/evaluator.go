package risk

import (
	"math"
	"time"
)

type Reason string

const (
	ReasonRapidLocationChange Reason = "rapid_location_change"
	ReasonVPNDetected         Reason = "vpn_detected"
	ReasonTorDetected         Reason = "tor_detected"
	ReasonJailbrokenDevice    Reason = "jailbroken_device"
	ReasonEmulatorDevice      Reason = "emulator_device"
	ReasonUnusualHour         Reason = "unusual_hour"
	ReasonExcessiveActivity   Reason = "excessive_activity"
)

type Action string

const (
	ActionAllow                 Action = "allow"
	ActionWarn                  Action = "warn"
	ActionFlagForReview         Action = "flag_for_review"
	ActionBlock                 Action = "block"
	ActionRequireAdditionalAuth Action = "require_additional_auth"
)

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Signals carries everything the evaluator may score. Every field is
// optional: an absent signal contributes zero.
type Signals struct {
	PrevLocation *GeoPoint
	PrevSeenAt   time.Time
	NewLocation  *GeoPoint
	ObservedAt   time.Time

	VPN        bool
	Tor        bool
	Jailbroken bool
	Emulator   bool

	LocalHour     int // -1 when unknown
	ActivityCount int
}

type Result struct {
	Score           float64  `json:"score"`
	IsSuspicious    bool     `json:"is_suspicious"`
	ShouldTerminate bool     `json:"should_terminate"`
	Reasons         []Reason `json:"reasons,omitempty"`
	Actions         []Action `json:"actions"`
}

// Config holds the weight table and thresholds. The additive model is fixed;
// deployments tune the numbers.
type Config struct {
	MaxTravelVelocityKMH float64 `mapstructure:"max_travel_velocity_kmh" json:"max_travel_velocity_kmh"`
	VelocityWeight       float64 `mapstructure:"velocity_weight" json:"velocity_weight"`
	VPNWeight            float64 `mapstructure:"vpn_weight" json:"vpn_weight"`
	TorWeight            float64 `mapstructure:"tor_weight" json:"tor_weight"`
	JailbreakWeight      float64 `mapstructure:"jailbreak_weight" json:"jailbreak_weight"`
	EmulatorWeight       float64 `mapstructure:"emulator_weight" json:"emulator_weight"`
	UnusualHourWeight    float64 `mapstructure:"unusual_hour_weight" json:"unusual_hour_weight"`
	ActivityWeight       float64 `mapstructure:"activity_weight" json:"activity_weight"`
	NightStartHour       int     `mapstructure:"night_start_hour" json:"night_start_hour"`
	NightEndHour         int     `mapstructure:"night_end_hour" json:"night_end_hour"`
	ActivityVolumeLimit  int     `mapstructure:"activity_volume_limit" json:"activity_volume_limit"`
	SuspiciousThreshold  float64 `mapstructure:"suspicious_threshold" json:"suspicious_threshold"`
	TerminateThreshold   float64 `mapstructure:"terminate_threshold" json:"terminate_threshold"`
}

func DefaultConfig() Config {
	return Config{
		MaxTravelVelocityKMH: 800,
		VelocityWeight:       0.8,
		VPNWeight:            0.3,
		TorWeight:            0.7,
		JailbreakWeight:      0.5,
		EmulatorWeight:       0.6,
		UnusualHourWeight:    0.2,
		ActivityWeight:       0.4,
		NightStartHour:       23,
		NightEndHour:         5,
		ActivityVolumeLimit:  100,
		SuspiciousThreshold:  0.5,
		TerminateThreshold:   0.8,
	}
}

type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) *Evaluator {
	if cfg.MaxTravelVelocityKMH <= 0 || cfg.SuspiciousThreshold <= 0 ||
		cfg.TerminateThreshold <= cfg.SuspiciousThreshold {
		panic("risk.Evaluator: invalid config")
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate is a pure additive scoring function: each triggered signal adds its
// weight independently, then the total is compared against the thresholds.
func (e *Evaluator) Evaluate(s Signals) Result {
	var (
		score   float64
		reasons []Reason
	)

	if e.travelVelocityExceeded(s) {
		score += e.cfg.VelocityWeight
		reasons = append(reasons, ReasonRapidLocationChange)
	}
	if s.VPN {
		score += e.cfg.VPNWeight
		reasons = append(reasons, ReasonVPNDetected)
	}
	if s.Tor {
		score += e.cfg.TorWeight
		reasons = append(reasons, ReasonTorDetected)
	}
	if s.Jailbroken {
		score += e.cfg.JailbreakWeight
		reasons = append(reasons, ReasonJailbrokenDevice)
	}
	if s.Emulator {
		score += e.cfg.EmulatorWeight
		reasons = append(reasons, ReasonEmulatorDevice)
	}
	if s.LocalHour >= 0 && (s.LocalHour < e.cfg.NightEndHour || s.LocalHour > e.cfg.NightStartHour) {
		score += e.cfg.UnusualHourWeight
		reasons = append(reasons, ReasonUnusualHour)
	}
	if s.ActivityCount > e.cfg.ActivityVolumeLimit {
		score += e.cfg.ActivityWeight
		reasons = append(reasons, ReasonExcessiveActivity)
	}

	res := Result{
		Score:           score,
		IsSuspicious:    score > e.cfg.SuspiciousThreshold,
		ShouldTerminate: score > e.cfg.TerminateThreshold,
		Reasons:         reasons,
	}

	switch {
	case res.ShouldTerminate:
		res.Actions = []Action{ActionBlock, ActionRequireAdditionalAuth}
	case res.IsSuspicious:
		res.Actions = []Action{ActionWarn, ActionFlagForReview}
	default:
		res.Actions = []Action{ActionAllow}
	}

	return res
}

func (e *Evaluator) travelVelocityExceeded(s Signals) bool {
	if s.PrevLocation == nil || s.NewLocation == nil {
		return false
	}
	if s.PrevSeenAt.IsZero() || s.ObservedAt.IsZero() || !s.ObservedAt.After(s.PrevSeenAt) {
		return false
	}

	distKM := haversineKM(*s.PrevLocation, *s.NewLocation)
	hours := s.ObservedAt.Sub(s.PrevSeenAt).Hours()

	return distKM/hours > e.cfg.MaxTravelVelocityKMH
}

// DistanceKM returns the great-circle distance between two points.
func DistanceKM(a, b GeoPoint) float64 {
	return haversineKM(a, b)
}

const earthRadiusKM = 6371.0

func haversineKM(a, b GeoPoint) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKM * math.Asin(math.Sqrt(h))
}
