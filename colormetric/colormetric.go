/*
Package colormetric implements the color distance functions used when matching
arbitrary RGB values against a fixed palette.

Two metrics are provided. WeightedEuclidean is a cheap integer approximation of
perceived difference that only guarantees a sensible relative ordering.
DeltaE2000 converts both colors to CIE Lab and computes the full CIEDE2000
color difference.

XYZ values use the 0-100 scale with the D65 reference white, Lab values use
the usual 0-100 lightness scale.
*/
package colormetric

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// colorful works with unit scaled XYZ and Lab values
const scale = 100

// XYZ is a color in the CIE 1931 XYZ color space
type XYZ struct {
	X, Y, Z float64
}

// Lab is a color in the CIE L*a*b* color space
type Lab struct {
	L, A, B float64
}

func fromRGB(r, g, b uint8) colorful.Color {
	return colorful.Color{
		R: float64(r) / 255,
		G: float64(g) / 255,
		B: float64(b) / 255,
	}
}

// RGBToXYZ converts an 8-bit sRGB color to XYZ.
func RGBToXYZ(r, g, b uint8) XYZ {
	x, y, z := fromRGB(r, g, b).Xyz()
	return XYZ{x * scale, y * scale, z * scale}
}

// XYZToLab converts an XYZ color to Lab.
func XYZToLab(c XYZ) Lab {
	l, a, b := colorful.XyzToLab(c.X/scale, c.Y/scale, c.Z/scale)
	return Lab{l * scale, a * scale, b * scale}
}

// LabToXYZ converts a Lab color to XYZ.
func LabToXYZ(c Lab) XYZ {
	x, y, z := colorful.LabToXyz(c.L/scale, c.A/scale, c.B/scale)
	return XYZ{x * scale, y * scale, z * scale}
}

// XYZToRGB converts an XYZ color to 8-bit sRGB, clamping anything out of
// gamut.
func XYZToRGB(c XYZ) (uint8, uint8, uint8) {
	return colorful.Xyz(c.X/scale, c.Y/scale, c.Z/scale).Clamped().RGB255()
}

// RGBToLab converts an 8-bit sRGB color to Lab.
func RGBToLab(r, g, b uint8) Lab {
	return XYZToLab(RGBToXYZ(r, g, b))
}

// LabToRGB converts a Lab color to 8-bit sRGB, clamping anything out of
// gamut.
func LabToRGB(c Lab) (uint8, uint8, uint8) {
	return XYZToRGB(LabToXYZ(c))
}

// DeltaE2000 returns the CIEDE2000 color difference between two Lab colors
// with all weighting factors set to 1.
func DeltaE2000(c1, c2 Lab) float64 {
	l1 := colorful.Lab(c1.L/scale, c1.A/scale, c1.B/scale)
	l2 := colorful.Lab(c2.L/scale, c2.A/scale, c2.B/scale)
	return l1.DistanceCIEDE2000(l2) * scale
}

// DeltaE2000RGB returns the CIEDE2000 color difference between two 8-bit sRGB
// colors.
func DeltaE2000RGB(r1, g1, b1, r2, g2, b2 uint8) float64 {
	return fromRGB(r1, g1, b1).DistanceCIEDE2000(fromRGB(r2, g2, b2)) * scale
}

// WeightedEuclidean returns the "redmean" weighted Euclidean distance between
// two 8-bit RGB colors. The weights of the red and blue components shift with
// the mean red level, all arithmetic is integer until the final square root.
func WeightedEuclidean(r1, g1, b1, r2, g2, b2 uint8) float64 {
	rmean := (int64(r1) + int64(r2)) / 2
	r := int64(r1) - int64(r2)
	g := int64(g1) - int64(g2)
	b := int64(b1) - int64(b2)

	return math.Sqrt(float64((((512 + rmean) * r * r) >> 8) + 4*g*g + (((767 - rmean) * b * b) >> 8)))
}
