package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// result in radians, xyz order
func QuatToEuler(q mgl32.Quat) (e mgl32.Vec3) {
	sinr_cosp := float64(2 * (q.W*q.X() + q.Y()*q.Z()))
	cosr_cosp := float64(1 - 2*(q.X()*q.X()+q.Y()*q.Y()))

	e[0] = float32(math.Atan2(sinr_cosp, cosr_cosp))

	sinp := float64(2 * (q.W*q.Y() - q.Z()*q.X()))
	if math.Abs(sinp) >= 1 {
		e[1] = math.Pi / 2
		if sinp < 0 {
			e[1] *= -1
		}
	} else {
		e[1] = float32(math.Asin(sinp))
	}

	siny_cosp := float64(2 * (q.W*q.Z() + q.X()*q.Y()))
	cosy_cosp := float64(1 - 2*(q.Y()*q.Y()+q.Z()*q.Z()))
	e[2] = float32(math.Atan2(siny_cosp, cosy_cosp))

	return e
}

func RadiansToDegreeV3(v mgl32.Vec3) mgl32.Vec3 {
	return v.Mul(180.0 / math.Pi)
}

// Decompose splits an affine matrix without shear into translation,
// rotation and per axis scale.
func Decompose(m mgl32.Mat4) (translation mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) {
	translation = m.Col(3).Vec3()

	var rot mgl32.Mat3
	for i := 0; i < 3; i++ {
		col := m.Col(i).Vec3()
		scale[i] = col.Len()
		if scale[i] != 0 {
			col = col.Mul(1 / scale[i])
		}
		rot.SetCol(i, col)
	}
	if rot.Det() < 0 {
		scale[0] = -scale[0]
		rot.SetCol(0, rot.Col(0).Mul(-1))
	}
	rotation = mgl32.Mat4ToQuat(rot.Mat4()).Normalize()
	return
}

func FloatArray32to64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func MatrixToFloat64(m mgl32.Mat4) []float64 {
	return FloatArray32to64(m[:])
}
