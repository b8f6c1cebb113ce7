package domain

import "math"

// EPSG:5070 (NAD83 / Conus Albers) projection constants on the GRS80
// ellipsoid: two standard parallels at 29.5 and 45.5 degrees, origin at
// 23N 96W, no false offsets. This is the native grid of the NLCD product.
const (
	grs80SemiMajor  = 6378137.0
	grs80InvFlatten = 298.257222101

	albersLat0 = 23.0
	albersLon0 = -96.0
	albersSP1  = 29.5
	albersSP2  = 45.5
)

var conusAlbers = newAlbersProjection()

type albersProjection struct {
	a    float64 // semi-major axis
	e    float64 // eccentricity
	e2   float64 // eccentricity squared
	n    float64
	c    float64
	rho0 float64
	lon0 float64 // radians
}

func newAlbersProjection() *albersProjection {
	f := 1 / grs80InvFlatten
	e2 := 2*f - f*f
	p := &albersProjection{
		a:    grs80SemiMajor,
		e:    math.Sqrt(e2),
		e2:   e2,
		lon0: albersLon0 * math.Pi / 180,
	}

	phi0 := albersLat0 * math.Pi / 180
	phi1 := albersSP1 * math.Pi / 180
	phi2 := albersSP2 * math.Pi / 180

	m1 := p.m(phi1)
	m2 := p.m(phi2)
	q0 := p.q(phi0)
	q1 := p.q(phi1)
	q2 := p.q(phi2)

	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.a * math.Sqrt(p.c-p.n*q0) / p.n
	return p
}

func (p *albersProjection) m(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-p.e2*s*s)
}

func (p *albersProjection) q(phi float64) float64 {
	s := math.Sin(phi)
	return (1 - p.e2) * (s/(1-p.e2*s*s) - (1/(2*p.e))*math.Log((1-p.e*s)/(1+p.e*s)))
}

// ToConusAlbers projects a WGS84/NAD83 lon/lat (degrees) to EPSG:5070
// easting/northing (metres). The datum shift between WGS84 and NAD83 is
// below the NLCD cell size and is ignored.
func ToConusAlbers(lon, lat float64) (x, y float64) {
	p := conusAlbers
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	q := p.q(phi)
	rho := p.a * math.Sqrt(p.c-p.n*q) / p.n
	theta := p.n * (lam - p.lon0)

	x = rho * math.Sin(theta)
	y = p.rho0 - rho*math.Cos(theta)
	return x, y
}

// FromConusAlbers converts EPSG:5070 easting/northing (metres) back to
// lon/lat degrees by iterating the inverse Albers series.
func FromConusAlbers(x, y float64) (lon, lat float64) {
	p := conusAlbers

	rho := math.Hypot(x, p.rho0-y)
	theta := math.Atan2(x, p.rho0-y)

	q := (p.c - (rho*p.n/p.a)*(rho*p.n/p.a)) / p.n

	// Iterate from the spherical estimate; convergence is quadratic and
	// four rounds are already below millimetre error.
	phi := math.Asin(clamp(q/2, -1, 1))
	for i := 0; i < 8; i++ {
		s := math.Sin(phi)
		denom := 1 - p.e2*s*s
		correction := (denom * denom / (2 * math.Cos(phi))) *
			(q/(1-p.e2) - s/denom + (1/(2*p.e))*math.Log((1-p.e*s)/(1+p.e*s)))
		next := phi + correction
		if math.Abs(next-phi) < 1e-12 {
			phi = next
			break
		}
		phi = next
	}

	lam := p.lon0 + theta/p.n
	return lam * 180 / math.Pi, phi * 180 / math.Pi
}

// ProjectExtentToAlbers projects the corners and edge midpoints of a
// geographic extent and returns their bounding box in EPSG:5070. Sampling
// the edge midpoints matters: Albers curves parallels, so the northern edge
// can bulge past both corners.
func ProjectExtentToAlbers(e Extent) Extent {
	midX := (e.MinX + e.MaxX) / 2
	midY := (e.MinY + e.MaxY) / 2
	pts := [][2]float64{
		{e.MinX, e.MinY}, {e.MaxX, e.MinY}, {e.MinX, e.MaxY}, {e.MaxX, e.MaxY},
		{midX, e.MinY}, {midX, e.MaxY}, {e.MinX, midY}, {e.MaxX, midY},
	}
	out := Extent{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, pt := range pts {
		x, y := ToConusAlbers(pt[0], pt[1])
		out.MinX = math.Min(out.MinX, x)
		out.MinY = math.Min(out.MinY, y)
		out.MaxX = math.Max(out.MaxX, x)
		out.MaxY = math.Max(out.MaxY, y)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
