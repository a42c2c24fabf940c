package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is what the visibility pass and the per-frame store read from the
// active view.
type Camera interface {
	ViewProjection() mgl32.Mat4
	PreviousViewProjection() mgl32.Mat4
	Position() mgl32.Vec3
	AABBInFrustum(box AABB) bool
}

// Frustum holds planes in order Left, Right, Bottom, Top, Near, Far as
// Ax + By + Cz + D = 0 with normals pointing inside.
type Frustum [6]mgl32.Vec4

// CameraState is a Z-up yaw/pitch perspective camera.
type CameraState struct {
	Eye    mgl32.Vec3
	Yaw    float32
	Pitch  float32
	FovY   float32 // radians
	Aspect float32
	Near   float32
	Far    float32

	viewProj     mgl32.Mat4
	prevViewProj mgl32.Mat4
	planes       Frustum
	updated      bool
}

func NewCameraState() *CameraState {
	c := &CameraState{
		Eye:    mgl32.Vec3{0, 2, 20},
		FovY:   mgl32.DegToRad(60),
		Aspect: 16.0 / 9.0,
		Near:   0.1,
		Far:    1000,
	}
	c.Update()
	return c
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Z-up: Forward in XY plane, Z for pitch
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
	}
}

// LookAt points the camera at target by solving yaw and pitch.
func (c *CameraState) LookAt(target mgl32.Vec3) {
	d := target.Sub(c.Eye)
	if d.Len() == 0 {
		return
	}
	d = d.Normalize()
	c.Pitch = float32(math.Asin(float64(d.Z())))
	c.Yaw = float32(math.Atan2(float64(d.X()), float64(-d.Y())))
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Eye
	target := eye.Add(c.GetForward())
	up := mgl32.Vec3{0, 0, 1} // Z-up
	return mgl32.LookAtV(eye, target, up)
}

func (c *CameraState) GetProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(c.FovY, c.Aspect, c.Near, c.Far)
}

// Update rolls the current view-projection into the previous slot and
// recomputes matrices and frustum planes. Call once per frame before culling.
func (c *CameraState) Update() {
	vp := c.GetProjectionMatrix().Mul4(c.GetViewMatrix())
	if c.updated {
		c.prevViewProj = c.viewProj
	} else {
		c.prevViewProj = vp
		c.updated = true
	}
	c.viewProj = vp
	c.planes = ExtractFrustum(vp)
}

func (c *CameraState) ViewProjection() mgl32.Mat4         { return c.viewProj }
func (c *CameraState) PreviousViewProjection() mgl32.Mat4 { return c.prevViewProj }
func (c *CameraState) Position() mgl32.Vec3               { return c.Eye }
func (c *CameraState) Frustum() Frustum                   { return c.planes }

func (c *CameraState) AABBInFrustum(box AABB) bool {
	return AABBInFrustum(box, c.planes)
}

// ExtractFrustum extracts the 6 planes of the frustum from the view-projection matrix.
// Near uses the OpenGL-style -1..1 clip range that mgl32.Perspective produces.
func ExtractFrustum(vp mgl32.Mat4) Frustum {
	var planes Frustum
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	planes[0] = r3.Add(r0) // left
	planes[1] = r3.Sub(r0) // right
	planes[2] = r3.Add(r1) // bottom
	planes[3] = r3.Sub(r1) // top
	planes[4] = r3.Add(r2) // near
	planes[5] = r3.Sub(r2) // far

	for i := range planes {
		length := planes[i].Vec3().Len()
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// AABBInFrustum reports whether box is at least partially inside planes.
// For each plane the corner furthest along the normal is tested; if even that
// corner is behind the plane the whole box is outside.
func AABBInFrustum(box AABB, planes Frustum) bool {
	if box.IsEmpty() {
		return false
	}
	for _, plane := range planes {
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = box.Max[axis]
			} else {
				p[axis] = box.Min[axis]
			}
		}
		if plane[0]*p[0]+plane[1]*p[1]+plane[2]*p[2]+plane[3] < 0 {
			return false
		}
	}
	return true
}
