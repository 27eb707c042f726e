package picking

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const tolerance = 1e-4

func approxEqual(a, b float32) bool {
	return math32.Abs(a-b) < tolerance
}

func vecApproxEqual(a, b mgl32.Vec3) bool {
	return approxEqual(a[0], b[0]) && approxEqual(a[1], b[1]) && approxEqual(a[2], b[2])
}

func TestViewportNDC(t *testing.T) {
	vp := Viewport{Left: 100, Top: 50, Width: 800, Height: 600}

	tests := []struct {
		name   string
		x, y   float32
		expect mgl32.Vec2
	}{
		{"center", 500, 350, mgl32.Vec2{0, 0}},
		{"top-left", 100, 50, mgl32.Vec2{-1, 1}},
		{"bottom-right", 900, 650, mgl32.Vec2{1, -1}},
		{"quarter", 300, 200, mgl32.Vec2{-0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vp.NDC(tt.x, tt.y)
			if !approxEqual(got[0], tt.expect[0]) || !approxEqual(got[1], tt.expect[1]) {
				t.Errorf("NDC(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.expect)
			}
		})
	}
}

func TestViewportNDCEmpty(t *testing.T) {
	got := Viewport{}.NDC(10, 10)
	if got != (mgl32.Vec2{}) {
		t.Errorf("expected zero NDC for empty viewport, got %v", got)
	}
}

func TestScreenToRayCenter(t *testing.T) {
	eye := mgl32.Vec3{0, 0, 5}
	view := mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(45), 1, 0.1, 100)
	inv := proj.Mul4(view).Inv()

	ray := ScreenToRay(mgl32.Vec2{0, 0}, inv)

	if !vecApproxEqual(ray.Direction, mgl32.Vec3{0, 0, -1}) {
		t.Errorf("expected direction (0,0,-1), got %v", ray.Direction)
	}
	if !approxEqual(ray.Origin[0], 0) || !approxEqual(ray.Origin[1], 0) {
		t.Errorf("expected origin on the view axis, got %v", ray.Origin)
	}
	if !approxEqual(ray.Origin[2], 4.9) {
		t.Errorf("expected origin on the near plane (z=4.9), got %v", ray.Origin[2])
	}
}

func TestScreenToRayOffCenter(t *testing.T) {
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	inv := proj.Mul4(view).Inv()

	ray := ScreenToRay(mgl32.Vec2{1, 0}, inv)
	if ray.Direction[0] <= 0 {
		t.Errorf("right edge ray should point to +X, got %v", ray.Direction)
	}
	// 90 degree fov: right edge is 45 degrees off axis.
	if !approxEqual(ray.Direction[0], -ray.Direction[2]) {
		t.Errorf("expected 45 degree ray, got %v", ray.Direction)
	}
}

func TestRayAt(t *testing.T) {
	r := NewRay(mgl32.Vec3{1, 2, 3}, mgl32.Vec3{0, 0, -2})
	if got := r.At(4); !vecApproxEqual(got, mgl32.Vec3{1, 2, -1}) {
		t.Errorf("At(4) = %v", got)
	}
}

func TestRayTransformPreservesParameter(t *testing.T) {
	world := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	r := NewRay(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, -1})

	local := r.Transform(world.Inv())
	const tw = 4
	back := mgl32.TransformCoordinate(local.At(tw), world)
	if !vecApproxEqual(back, r.At(tw)) {
		t.Errorf("expected %v, got %v", r.At(tw), back)
	}
}

func TestIntersectPlane(t *testing.T) {
	r := NewRay(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, -1, 0})

	tt, ok := r.IntersectPlane(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	if !ok || !approxEqual(tt, 10) {
		t.Errorf("expected t=10, got %v ok=%v", tt, ok)
	}

	if _, ok := r.IntersectPlane(mgl32.Vec3{0, 20, 0}, mgl32.Vec3{0, 1, 0}); ok {
		t.Error("plane behind origin should not intersect")
	}

	parallel := NewRay(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{1, 0, 0})
	if _, ok := parallel.IntersectPlane(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}); ok {
		t.Error("parallel ray should not intersect")
	}
}

func TestIntersectAABB(t *testing.T) {
	box := NewAABB(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})

	tests := []struct {
		name   string
		ray    Ray
		hit    bool
		expect float32
	}{
		{"hit from front", NewRay(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, -1}), true, 4},
		{"miss to side", NewRay(mgl32.Vec3{3, 0, 5}, mgl32.Vec3{0, 0, -1}), false, 0},
		{"inside returns exit", NewRay(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}), true, 1},
		{"pointing away", NewRay(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 1}), false, 0},
		{"axis parallel outside", NewRay(mgl32.Vec3{0, 2, 5}, mgl32.Vec3{0, 0, -1}), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hit := tt.ray.IntersectAABB(box)
			if hit != tt.hit {
				t.Fatalf("hit = %v, want %v", hit, tt.hit)
			}
			if hit && !approxEqual(got, tt.expect) {
				t.Errorf("t = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestIntersectTriangle(t *testing.T) {
	a := mgl32.Vec3{-1, -1, 0}
	b := mgl32.Vec3{1, -1, 0}
	c := mgl32.Vec3{0, 1, 0}

	front := NewRay(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, -1})
	if got, hit := front.IntersectTriangle(a, b, c); !hit || !approxEqual(got, 3) {
		t.Errorf("front hit: t=%v hit=%v", got, hit)
	}

	back := NewRay(mgl32.Vec3{0, 0, -3}, mgl32.Vec3{0, 0, 1})
	if _, hit := back.IntersectTriangle(a, b, c); !hit {
		t.Error("back-facing triangle should still be hit")
	}

	outside := NewRay(mgl32.Vec3{2, 2, 3}, mgl32.Vec3{0, 0, -1})
	if _, hit := outside.IntersectTriangle(a, b, c); hit {
		t.Error("ray outside triangle should miss")
	}

	behind := NewRay(mgl32.Vec3{0, 0, -3}, mgl32.Vec3{0, 0, -1})
	if _, hit := behind.IntersectTriangle(a, b, c); hit {
		t.Error("triangle behind origin should miss")
	}
}

func TestNewAABBOrdersCorners(t *testing.T) {
	box := NewAABB(mgl32.Vec3{1, -2, 3}, mgl32.Vec3{-1, 2, -3})
	if box.Min != (mgl32.Vec3{-1, -2, -3}) || box.Max != (mgl32.Vec3{1, 2, 3}) {
		t.Errorf("unexpected box %+v", box)
	}
}

func TestAABBExtendAndTransform(t *testing.T) {
	box := EmptyAABB()
	if box.Valid() {
		t.Fatal("empty box should be invalid")
	}
	box = box.Extend(mgl32.Vec3{1, 0, 0}).Extend(mgl32.Vec3{-1, 2, 1})
	if !box.Valid() {
		t.Fatal("extended box should be valid")
	}
	if !vecApproxEqual(box.Center(), mgl32.Vec3{0, 1, 0.5}) {
		t.Errorf("unexpected center %v", box.Center())
	}

	moved := box.Transform(mgl32.Translate3D(10, 0, 0))
	if !vecApproxEqual(moved.Min, mgl32.Vec3{9, 0, 0}) || !vecApproxEqual(moved.Max, mgl32.Vec3{11, 2, 1}) {
		t.Errorf("unexpected transformed box %+v", moved)
	}
}
