// Package domain models the satellite imagery ingestion and flood polygon
// extraction pipeline.
//
// # Data Source
//
// Scenes are rendered on demand by the Copernicus Data Space Sentinel Hub
// process API (https://dataspace.copernicus.eu/). Each request names a
// bounding box, an acquisition date, and an evalscript that reduces the raw
// bands to a single scaled water-index layer. The provider authenticates via
// an OAuth2 client-credentials exchange against the CDSE identity endpoint;
// a pre-issued static bearer token can be supplied instead for testing.
//
// # Sensor Profiles
//
// Acquisition walks a fixed priority list of sensor profiles:
//
//	s2-ndwi  Sentinel-2 L2A optical, NDWI = (B03-B08)/(B03+B08) scaled to
//	         0..255 and returned as PNG. Preferred because optical water
//	         indices are cheap to threshold, but blind under cloud cover.
//	s1-vv    Sentinel-1 GRD radar VV backscatter scaled to 0..255 and
//	         returned as TIFF. Cloud-independent fallback; speckle noise
//	         requires a different extraction threshold and minimum area.
//
// Radar and optical signals need different iso-contour thresholds, so each
// profile carries a tuned extraction preset. When an artifact's name embeds
// a known sensor id, extraction overrides caller-supplied parameters with
// that preset.
//
// # Temporal Fallback
//
// Sentinel revisit gaps and cloud masking mean the requested date often has
// no usable scene. Acquisition retries the full sensor sweep against a fixed
// schedule of older dates: -7, -14, -21, -30, -45 and -60 days. The first
// scene that validates wins; later offsets are never attempted. When the
// whole schedule is exhausted the caller may substitute a synthetic
// placeholder scene (provenance "placeholder") so the rest of the pipeline
// stays exercisable — a deliberate degraded mode, never a silent failure.
//
// # Artifact Naming
//
// Stored artifacts are named "<source>_<date>_<fingerprint>.<ext>", e.g.
// "s2-ndwi_2026-04-12_9f2c41d8.png". The fingerprint is a deterministic
// SHA-256 short hash of the request parameters (see [Fingerprint]), which
// makes re-acquisition of an identical request land on the same name and
// keeps cache keys reproducible across restarts. Uploaded artifacts use the
// "upload" source, synthetic ones "placeholder".
//
// # Geometry Conventions
//
// Pixel row 0 is the north edge of the bounding box, so pixel-to-geographic
// mapping flips the vertical axis. Polygon rings are closed (first point
// equals last), wound arbitrarily, with vertices in [lon, lat] order.
// Areas are planar shoelace areas in squared degrees; the pipeline performs
// no reprojection, so minimum-area presets are expressed in the same unit.
package domain
