package nrcs

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gml3Fixture = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs" xmlns:gml="http://www.opengis.net/gml" xmlns:ms="http://mapserver.gis.umn.edu/mapserver">
  <gml:featureMember>
    <ms:MapunitPoly>
      <ms:mukey>123456</ms:mukey>
      <ms:musym>AbB</ms:musym>
      <ms:geometry>
        <gml:Polygon srsName="EPSG:4326">
          <gml:exterior>
            <gml:LinearRing>
              <gml:posList srsDimension="2">-93.50 41.00 -93.40 41.00 -93.40 41.10 -93.50 41.10 -93.50 41.00</gml:posList>
            </gml:LinearRing>
          </gml:exterior>
        </gml:Polygon>
      </ms:geometry>
    </ms:MapunitPoly>
  </gml:featureMember>
  <gml:featureMember>
    <ms:MapunitPoly>
      <ms:mukey>123457</ms:mukey>
      <ms:geometry>
        <gml:MultiSurface srsName="urn:ogc:def:crs:EPSG::4326">
          <gml:surfaceMember>
            <gml:Polygon>
              <gml:exterior>
                <gml:LinearRing>
                  <gml:posList>41.00 -93.30 41.00 -93.20 41.10 -93.20 41.00 -93.30</gml:posList>
                </gml:LinearRing>
              </gml:exterior>
            </gml:Polygon>
          </gml:surfaceMember>
          <gml:surfaceMember>
            <gml:Polygon>
              <gml:exterior>
                <gml:LinearRing>
                  <gml:posList>41.20 -93.30 41.20 -93.25 41.25 -93.25 41.20 -93.30</gml:posList>
                </gml:LinearRing>
              </gml:exterior>
            </gml:Polygon>
          </gml:surfaceMember>
        </gml:MultiSurface>
      </ms:geometry>
    </ms:MapunitPoly>
  </gml:featureMember>
</wfs:FeatureCollection>`

const gml2Fixture = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs" xmlns:gml="http://www.opengis.net/gml" xmlns:ms="http://mapserver.gis.umn.edu/mapserver">
  <gml:featureMember>
    <ms:MapunitPoly>
      <ms:mukey>987654</ms:mukey>
      <ms:geometry>
        <gml:Polygon srsName="EPSG:4326">
          <gml:outerBoundaryIs>
            <gml:LinearRing>
              <gml:coordinates>-93.50,41.00 -93.40,41.00 -93.40,41.10 -93.50,41.00</gml:coordinates>
            </gml:LinearRing>
          </gml:outerBoundaryIs>
          <gml:innerBoundaryIs>
            <gml:LinearRing>
              <gml:coordinates>-93.48,41.02 -93.44,41.02 -93.44,41.05 -93.48,41.02</gml:coordinates>
            </gml:LinearRing>
          </gml:innerBoundaryIs>
        </gml:Polygon>
      </ms:geometry>
    </ms:MapunitPoly>
  </gml:featureMember>
</wfs:FeatureCollection>`

const exceptionFixture = `<?xml version="1.0" encoding="UTF-8"?>
<ServiceExceptionReport version="1.2.0">
  <ServiceException code="InvalidParameterValue">msWFSGetFeature(): unknown layer</ServiceException>
</ServiceExceptionReport>`

func TestParseMapUnitFeatures_GML3(t *testing.T) {
	features, err := ParseMapUnitFeatures([]byte(gml3Fixture))
	require.NoError(t, err)
	require.Len(t, features, 2)

	first := features[0]
	assert.Equal(t, "123456", first.StringProperty("mukey"))
	assert.Equal(t, "AbB", first.StringProperty("musym"))

	poly, ok := first.Geometry.(orb.Polygon)
	require.True(t, ok, "single polygon stays a Polygon")
	require.Len(t, poly, 1)
	assert.Equal(t, orb.Point{-93.50, 41.00}, poly[0][0])
	assert.Len(t, poly[0], 5)

	second := features[1]
	assert.Equal(t, "123457", second.StringProperty("mukey"))

	multi, ok := second.Geometry.(orb.MultiPolygon)
	require.True(t, ok, "multi surface becomes a MultiPolygon")
	require.Len(t, multi, 2)
	// urn-style srsName means lat/lon order on the wire; parsed points
	// must come back as lon/lat.
	assert.Equal(t, orb.Point{-93.30, 41.00}, multi[0][0][0])
}

func TestParseMapUnitFeatures_GML2(t *testing.T) {
	features, err := ParseMapUnitFeatures([]byte(gml2Fixture))
	require.NoError(t, err)
	require.Len(t, features, 1)

	poly, ok := features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 2, "exterior plus one hole")
	assert.Equal(t, orb.Point{-93.50, 41.00}, poly[0][0])
	assert.Equal(t, orb.Point{-93.48, 41.02}, poly[1][0])
}

func TestParseMapUnitFeatures_Empty(t *testing.T) {
	empty := `<?xml version="1.0"?><wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs"/>`
	features, err := ParseMapUnitFeatures([]byte(empty))
	require.NoError(t, err)
	assert.Empty(t, features)
}

func TestParseMapUnitFeatures_ServiceException(t *testing.T) {
	_, err := ParseMapUnitFeatures([]byte(exceptionFixture))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown layer")
}

func TestParseMapUnitFeatures_MalformedXML(t *testing.T) {
	_, err := ParseMapUnitFeatures([]byte("<not-closed"))
	require.Error(t, err)
}

func TestParseMapUnitFeatures_OpenRingClosed(t *testing.T) {
	open := `<?xml version="1.0"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs" xmlns:gml="http://www.opengis.net/gml" xmlns:ms="http://example.com/ms">
  <gml:featureMember>
    <ms:MapunitPoly>
      <ms:mukey>1</ms:mukey>
      <gml:Polygon srsName="EPSG:4326">
        <gml:exterior>
          <gml:LinearRing>
            <gml:posList>0 0 1 0 1 1 0 1</gml:posList>
          </gml:LinearRing>
        </gml:exterior>
      </gml:Polygon>
    </ms:MapunitPoly>
  </gml:featureMember>
</wfs:FeatureCollection>`
	features, err := ParseMapUnitFeatures([]byte(open))
	require.NoError(t, err)
	require.Len(t, features, 1)
	poly := features[0].Geometry.(orb.Polygon)
	require.Len(t, poly[0], 5)
	assert.Equal(t, poly[0][0], poly[0][len(poly[0])-1])
}
