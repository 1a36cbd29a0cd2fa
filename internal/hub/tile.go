package hub

import (
	"fmt"
	"math"

	"transitpulse/internal/domain"
)

// TileID returns the slippy-map tile "z/x/y" containing the coordinate.
func TileID(lat, lon float64, zoom int) string {
	x, y := tileXY(lat, lon, zoom)
	return fmt.Sprintf("%d/%d/%d", zoom, x, y)
}

func tileXY(lat, lon float64, zoom int) (int, int) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180.0

	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	maxTile := int(n) - 1
	return clamp(x, 0, maxTile), clamp(y, 0, maxTile)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// ParseTileID splits "z/x/y". It rejects trailing text and coordinates
// outside the zoom level's grid.
func ParseTileID(tileID string) (zoom, x, y int, ok bool) {
	n, err := fmt.Sscanf(tileID, "%d/%d/%d", &zoom, &x, &y)
	if err != nil || n != 3 || fmt.Sprintf("%d/%d/%d", zoom, x, y) != tileID {
		return 0, 0, 0, false
	}
	if zoom < 0 || zoom > 30 || x < 0 || y < 0 || x >= 1<<zoom || y >= 1<<zoom {
		return 0, 0, 0, false
	}
	return zoom, x, y, true
}

// TilesInBBox lists every tile at zoom intersecting bbox.
func TilesInBBox(bbox domain.BoundingBox, zoom int) []string {
	x1, y1 := tileXY(bbox.MaxLat, bbox.MinLon, zoom)
	x2, y2 := tileXY(bbox.MinLat, bbox.MaxLon, zoom)

	tiles := make([]string, 0, (x2-x1+1)*(y2-y1+1))
	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			tiles = append(tiles, fmt.Sprintf("%d/%d/%d", zoom, x, y))
		}
	}
	return tiles
}

// TilesAround lists the tiles covering a circle of radiusMeters around the point.
func TilesAround(lat, lon, radiusMeters float64, zoom int) []string {
	dLat := radiusMeters / domain.EarthRadiusMeters * 180.0 / math.Pi
	dLon := dLat / math.Max(math.Cos(lat*math.Pi/180.0), 0.01)

	return TilesInBBox(domain.BoundingBox{
		MinLat: math.Max(lat-dLat, -85),
		MaxLat: math.Min(lat+dLat, 85),
		MinLon: math.Max(lon-dLon, -180),
		MaxLon: math.Min(lon+dLon, 180),
	}, zoom)
}
