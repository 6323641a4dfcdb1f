package teleop

// TorsoJointCount is the number of trunk lift joints driven by the
// interpolated torso pose.
const TorsoJointCount = 4

// Calibrated torso joint positions for the three reference trunk poses.
// The trunk translate value interpolates upright -> downward over [0, 1]
// and downward -> ground over [1, 2].
var (
	torsoPoseUpright  = [TorsoJointCount]float64{0.0, 0.0, 0.0, 0.0}
	torsoPoseDownward = [TorsoJointCount]float64{1.1345, -1.1345, -0.4363, 0.0}
	torsoPoseGround   = [TorsoJointCount]float64{1.8326, -1.8326, -0.2618, 0.0}
)

// Trunk translate bounds.
const (
	TrunkTranslateMin = 0.0
	TrunkTranslateMax = 2.0
)

// ClampTrunkTranslate clamps a translate value to [TrunkTranslateMin, TrunkTranslateMax].
func ClampTrunkTranslate(translate float64) float64 {
	if translate < TrunkTranslateMin {
		return TrunkTranslateMin
	}
	if translate > TrunkTranslateMax {
		return TrunkTranslateMax
	}
	return translate
}

// TorsoPoseFromTranslate converts a trunk translate value into torso joint
// positions by piecewise linear interpolation across the three calibration
// poses. The input is clamped to the valid translate range.
func TorsoPoseFromTranslate(translate float64) []float64 {
	translate = ClampTrunkTranslate(translate)

	var lo, hi [TorsoJointCount]float64
	var t float64
	if translate <= 1.0 {
		lo, hi = torsoPoseUpright, torsoPoseDownward
		t = translate
	} else {
		lo, hi = torsoPoseDownward, torsoPoseGround
		t = translate - 1.0
	}

	pose := make([]float64, TorsoJointCount)
	for i := range pose {
		pose[i] = (1-t)*lo[i] + t*hi[i]
	}
	return pose
}

// TranslateFromTorsoPose inverts TorsoPoseFromTranslate using the first
// torso joint, which is strictly monotonic across the calibration poses.
func TranslateFromTorsoPose(pose []float64) float64 {
	if len(pose) == 0 {
		return TrunkTranslateMin
	}
	q := pose[0]
	if q > torsoPoseDownward[0] {
		return 1 + (q-torsoPoseDownward[0])/(torsoPoseGround[0]-torsoPoseDownward[0])
	}
	return (q - torsoPoseUpright[0]) / (torsoPoseDownward[0] - torsoPoseUpright[0])
}
