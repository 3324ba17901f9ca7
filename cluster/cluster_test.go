package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-civico/models"
)

var wideBounds = Bounds{North: 89, South: -89, East: 179, West: -179}

func issueAt(id string, lat, lng float64) models.Issue {
	return models.Issue{ID: id, Latitude: lat, Longitude: lng}
}

func TestClusterMergesNearbyPoints(t *testing.T) {
	// A few meters apart; far below 75px at zoom 10.
	issues := []models.Issue{
		issueAt("a", -15.7940, -47.8820),
		issueAt("b", -15.7941, -47.8821),
		issueAt("c", -15.7942, -47.8822),
	}

	markers := Cluster(issues, wideBounds, 10)

	require.Len(t, markers, 1)
	assert.True(t, markers[0].IsCluster())
	assert.Equal(t, 3, markers[0].Count)
	assert.Nil(t, markers[0].Issue)
	assert.InDelta(t, -15.7941, markers[0].Latitude, 0.01)
	assert.InDelta(t, -47.8821, markers[0].Longitude, 0.01)
}

func TestClusterKeepsDistantPointsApart(t *testing.T) {
	issues := []models.Issue{
		issueAt("a", -15.79, -47.88), // Brasília
		issueAt("b", -23.55, -46.63), // São Paulo
	}

	markers := Cluster(issues, wideBounds, 10)

	require.Len(t, markers, 2)
	for _, m := range markers {
		assert.False(t, m.IsCluster())
		require.NotNil(t, m.Issue)
	}
}

func TestClusterDisabledAtMaxZoom(t *testing.T) {
	issues := []models.Issue{
		issueAt("a", -15.7940, -47.8820),
		issueAt("b", -15.7941, -47.8821),
	}

	markers := Cluster(issues, wideBounds, MaxZoom)

	require.Len(t, markers, 2)
	assert.Equal(t, 1, markers[0].Count)
	assert.Equal(t, 1, markers[1].Count)
}

func TestClusterFiltersByViewport(t *testing.T) {
	issues := []models.Issue{
		issueAt("inside", -15.79, -47.88),
		issueAt("outside", 40.71, -74.00),
	}
	bounds := Bounds{North: -10, South: -20, East: -40, West: -55}

	markers := Cluster(issues, bounds, 12)

	require.Len(t, markers, 1)
	require.NotNil(t, markers[0].Issue)
	assert.Equal(t, "inside", markers[0].Issue.ID)
}

func TestClusterIsDeterministic(t *testing.T) {
	issues := []models.Issue{
		issueAt("a", -15.794, -47.882),
		issueAt("b", -15.795, -47.883),
		issueAt("c", -15.900, -47.950),
		issueAt("d", -16.100, -48.100),
		issueAt("e", -16.101, -48.101),
	}

	first := Cluster(issues, wideBounds, 11)
	second := Cluster(issues, wideBounds, 11)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Count, second[i].Count)
		assert.Equal(t, first[i].Latitude, second[i].Latitude)
		assert.Equal(t, first[i].Longitude, second[i].Longitude)
	}
}

func TestExpansionZoomSplitsCluster(t *testing.T) {
	// About 500m apart: merged when zoomed out, split when zoomed in.
	issues := []models.Issue{
		issueAt("a", -15.7900, -47.8800),
		issueAt("b", -15.7945, -47.8800),
	}

	markers := Cluster(issues, wideBounds, 10)
	require.Len(t, markers, 1)
	require.True(t, markers[0].IsCluster())

	z := ExpansionZoom(markers[0], 10)
	assert.Greater(t, z, 10)
	assert.LessOrEqual(t, z, MaxZoom)

	split := Cluster(issues, wideBounds, z)
	assert.Greater(t, len(split), 1)
}

func TestExpansionZoomCapsAtMaxZoom(t *testing.T) {
	// Identical coordinates never split below MaxZoom.
	issues := []models.Issue{
		issueAt("a", -15.79, -47.88),
		issueAt("b", -15.79, -47.88),
	}

	markers := Cluster(issues, wideBounds, 10)
	require.Len(t, markers, 1)

	assert.Equal(t, MaxZoom, ExpansionZoom(markers[0], 10))
}

func TestExpansionZoomOnSingletonReturnsCurrentZoom(t *testing.T) {
	markers := Cluster([]models.Issue{issueAt("a", -15.79, -47.88)}, wideBounds, 12)
	require.Len(t, markers, 1)

	assert.Equal(t, 12, ExpansionZoom(markers[0], 12))
}

func TestFocusZoomClampsZoomedOutViews(t *testing.T) {
	assert.Equal(t, MinFocusZoom, FocusZoom(3))
	assert.Equal(t, 17, FocusZoom(17))
}

func TestBoundsAcrossAntimeridian(t *testing.T) {
	b := Bounds{North: 10, South: -10, East: -170, West: 170}

	assert.True(t, b.Contains(0, 175))
	assert.True(t, b.Contains(0, -175))
	assert.False(t, b.Contains(0, 0))
}

func TestProjectionRoundTrip(t *testing.T) {
	scale := tileSize * 1024.0 // zoom 10
	lat, lng := -15.794, -47.882

	x, y := project(lat, lng, scale)
	gotLat, gotLng := unproject(x, y, scale)

	assert.InDelta(t, lat, gotLat, 1e-6)
	assert.InDelta(t, lng, gotLng, 1e-6)
}
