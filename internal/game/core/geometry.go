package core

import "math"

// Vec2 is a position in the continuous match field.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewVec2 creates a new position with the given x and y values
func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// DistanceTo returns the euclidean distance to another position
func (v Vec2) DistanceTo(other Vec2) float64 {
	return math.Hypot(other.X-v.X, other.Y-v.Y)
}

// Lerp returns the point at fraction t along the segment v -> other.
// t is not clamped.
func (v Vec2) Lerp(other Vec2, t float64) Vec2 {
	return Vec2{
		X: v.X + (other.X-v.X)*t,
		Y: v.Y + (other.Y-v.Y)*t,
	}
}
