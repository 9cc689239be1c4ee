// Package domain models community-reported hazard hotspots and the static
// shelter directory shown alongside them on the map.
//
// # Coordinates
//
// All positions are WGS84 decimal degrees. Distances use the haversine
// great-circle formula on a spherical earth of radius 6371 km, which is
// accurate to well under one percent at the sub-10 km scales the map works in.
//
// Map viewports are axis-aligned latitude/longitude boxes. A viewport that
// crosses the antimeridian (east < west) is treated as empty rather than
// split in two; the service area never reaches ±180°.
//
// # Visibility
//
// A record is visible when it passes three filters in order:
//
//	spatial:  viewport bounds when out-of-range detection is on,
//	          else radius around the user, else everything
//	severity: member of the selected set (empty set keeps all)
//	text:     case-insensitive substring of title/description
//	          (name/address for shelters)
//
// The spatial stage fails open: with neither a location nor bounds the map
// shows every record rather than nothing.
//
// # Addresses
//
// Reverse geocoding never fails from the caller's point of view. When the
// provider is unreachable or has no match, [FallbackAddress] synthesizes a
// placeholder flagged with Fallback so consumers can tell it apart.
package domain
