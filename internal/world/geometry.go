package world

import "math"

// Vector2D is a point or direction in world space. The y axis grows downward,
// so "up" is (0, -1).
type Vector2D struct {
	X float64 `json:"X" msgpack:"x"`
	Y float64 `json:"Y" msgpack:"y"`
}

// Vec returns the vector (x, y).
func Vec(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

// Add returns v + o.
func (v Vector2D) Add(o Vector2D) Vector2D {
	return Vector2D{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vector2D) Sub(o Vector2D) Vector2D {
	return Vector2D{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by s.
func (v Vector2D) Scale(s float64) Vector2D {
	return Vector2D{X: v.X * s, Y: v.Y * s}
}

// Length returns the Euclidean length of v.
func (v Vector2D) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vector2D) Normalize() Vector2D {
	length := v.Length()
	if length == 0 {
		return v
	}
	return Vector2D{X: v.X / length, Y: v.Y / length}
}

// Neg returns the reverse of v.
func (v Vector2D) Neg() Vector2D {
	return Vector2D{X: -v.X, Y: -v.Y}
}

// Dist returns the distance between v and o.
func (v Vector2D) Dist(o Vector2D) float64 {
	return v.Sub(o).Length()
}

// Angle converts v to degrees clockwise from up, in [0, 360).
func (v Vector2D) Angle() float64 {
	deg := math.Atan2(v.X, -v.Y) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// box is an axis-aligned rectangle given by its inclusive corners.
type box struct {
	minX, minY float64
	maxX, maxY float64
}

// segmentBox returns the bounding box of the segment a-b inflated by pad on
// every side. The endpoints may arrive in either order.
func segmentBox(a, b Vector2D, pad float64) box {
	bx := box{minX: a.X, maxX: b.X, minY: a.Y, maxY: b.Y}
	if b.X < a.X {
		bx.minX, bx.maxX = b.X, a.X
	}
	if b.Y < a.Y {
		bx.minY, bx.maxY = b.Y, a.Y
	}
	bx.minX -= pad
	bx.minY -= pad
	bx.maxX += pad
	bx.maxY += pad
	return bx
}

// contains reports whether p lies strictly inside the box.
func (b box) contains(p Vector2D) bool {
	return b.minX < p.X && p.X < b.maxX && b.minY < p.Y && p.Y < b.maxY
}
