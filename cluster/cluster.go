package cluster

import (
	"math"

	"atlas-civico/models"
)

const (
	// Radius is the merge radius in screen pixels at the rendering scale.
	Radius = 75.0

	// MaxZoom is the zoom level at and beyond which clustering is disabled
	// and every issue renders as a singleton marker.
	MaxZoom = 20

	// MinFocusZoom clamps how far the viewport may zoom out when centering
	// on a singleton marker.
	MinFocusZoom = 14

	tileSize = 256.0
)

// Bounds is a viewport bounding box in degrees.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether the point lies inside the bounds. Boxes crossing
// the antimeridian are handled by the East < West case.
func (b Bounds) Contains(lat, lng float64) bool {
	if lat > b.North || lat < b.South {
		return false
	}
	if b.East < b.West {
		return lng >= b.West || lng <= b.East
	}
	return lng >= b.West && lng <= b.East
}

// Marker is a render primitive: either a cluster marker (centroid + count)
// or a singleton marker carrying its issue.
type Marker struct {
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	Count     int            `json:"count"`
	Issue     *models.Issue  `json:"issue,omitempty"`
	Issues    []models.Issue `json:"-"`
}

func (m Marker) IsCluster() bool {
	return m.Count > 1
}

// Cluster partitions the issues visible in the viewport into cluster and
// singleton markers for the given zoom level. The merge is a grid walk in
// web-mercator pixel space: each point joins the first existing cluster
// within Radius pixels, in input order, so identical inputs always produce
// an identical partition.
func Cluster(issues []models.Issue, b Bounds, zoom int) []Marker {
	visible := make([]models.Issue, 0, len(issues))
	for _, is := range issues {
		if b.Contains(is.Latitude, is.Longitude) {
			visible = append(visible, is)
		}
	}

	if zoom >= MaxZoom {
		return singletons(visible)
	}
	return merge(visible, zoom)
}

func singletons(issues []models.Issue) []Marker {
	markers := make([]Marker, 0, len(issues))
	for i := range issues {
		is := issues[i]
		markers = append(markers, Marker{
			Latitude:  is.Latitude,
			Longitude: is.Longitude,
			Count:     1,
			Issue:     &is,
			Issues:    []models.Issue{is},
		})
	}
	return markers
}

func merge(issues []models.Issue, zoom int) []Marker {
	type group struct {
		sumX, sumY float64
		members    []models.Issue
	}

	var groups []*group
	// Cell index over the pixel grid; only neighboring cells can hold a
	// group within Radius.
	cells := make(map[[2]int][]int)

	scale := tileSize * math.Pow(2, float64(zoom))

	for _, is := range issues {
		x, y := project(is.Latitude, is.Longitude, scale)
		cx, cy := int(x/Radius), int(y/Radius)

		joined := -1
		for dx := -1; dx <= 1 && joined < 0; dx++ {
			for dy := -1; dy <= 1 && joined < 0; dy++ {
				for _, gi := range cells[[2]int{cx + dx, cy + dy}] {
					g := groups[gi]
					n := float64(len(g.members))
					gx, gy := g.sumX/n, g.sumY/n
					if math.Hypot(x-gx, y-gy) <= Radius {
						joined = gi
						break
					}
				}
			}
		}

		if joined >= 0 {
			g := groups[joined]
			g.sumX += x
			g.sumY += y
			g.members = append(g.members, is)
			continue
		}

		groups = append(groups, &group{sumX: x, sumY: y, members: []models.Issue{is}})
		cells[[2]int{cx, cy}] = append(cells[[2]int{cx, cy}], len(groups)-1)
	}

	markers := make([]Marker, 0, len(groups))
	for _, g := range groups {
		n := float64(len(g.members))
		lat, lng := unproject(g.sumX/n, g.sumY/n, scale)
		m := Marker{
			Latitude:  lat,
			Longitude: lng,
			Count:     len(g.members),
			Issues:    g.members,
		}
		if len(g.members) == 1 {
			m.Latitude = g.members[0].Latitude
			m.Longitude = g.members[0].Longitude
			m.Issue = &g.members[0]
		}
		markers = append(markers, m)
	}
	return markers
}

// ExpansionZoom is the minimum zoom level at which the cluster marker splits
// into more than one marker, capped at MaxZoom. Singleton markers return the
// current zoom unchanged.
func ExpansionZoom(m Marker, zoom int) int {
	if !m.IsCluster() {
		return zoom
	}
	for z := zoom + 1; z < MaxZoom; z++ {
		if len(merge(m.Issues, z)) > 1 {
			return z
		}
	}
	return MaxZoom
}

// FocusZoom is the zoom to use when centering on a singleton marker: the
// current zoom, raised to MinFocusZoom if the view is zoomed further out.
func FocusZoom(zoom int) int {
	if zoom < MinFocusZoom {
		return MinFocusZoom
	}
	return zoom
}

// project maps a coordinate to web-mercator pixel space at the given scale.
func project(lat, lng float64, scale float64) (x, y float64) {
	sin := math.Sin(lat * math.Pi / 180)
	// Clamp near the poles where the projection diverges.
	sin = math.Min(math.Max(sin, -0.9999), 0.9999)
	x = scale * (lng/360 + 0.5)
	y = scale * (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi))
	return x, y
}

func unproject(x, y float64, scale float64) (lat, lng float64) {
	lng = (x/scale - 0.5) * 360
	yn := 0.5 - y/scale
	lat = 360*math.Atan(math.Exp(2*math.Pi*yn))/math.Pi - 90
	return lat, lng
}
