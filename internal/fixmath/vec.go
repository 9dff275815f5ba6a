package fixmath

// Vec2 is a fixed-point 2D vector.
type Vec2 struct {
	X, Y Scalar
}

// Vec3 is a fixed-point 3D vector.
type Vec3 struct {
	X, Y, Z Scalar
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale multiplies both components by s.
func (v Vec2) Scale(s Scalar) Vec2 { return Vec2{Mul(v.X, s), Mul(v.Y, s)} }

// Dot returns the dot product.
func (v Vec2) Dot(o Vec2) Scalar { return Mul(v.X, o.X) + Mul(v.Y, o.Y) }

// LenSq returns the squared length. Distance comparisons stay in squared
// space; there is no fixed-point square root on authoritative paths.
func (v Vec2) LenSq() Scalar { return v.Dot(v) }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s Scalar) Vec3 { return Vec3{Mul(v.X, s), Mul(v.Y, s), Mul(v.Z, s)} }

func (v Vec3) Dot(o Vec3) Scalar { return Mul(v.X, o.X) + Mul(v.Y, o.Y) + Mul(v.Z, o.Z) }

func (v Vec3) LenSq() Scalar { return v.Dot(v) }
