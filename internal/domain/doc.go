// Package domain models earthquake catalog data and the energy statistics
// derived from it.
//
// # Data Source
//
// Events come from the USGS FDSN event web service
// (https://earthquake.usgs.gov/fdsnws/event/1/) queried with format=csv for a
// fixed bounding box and a list of consecutive date windows. The service caps
// each response at 20,000 rows, so a long period is split into several
// windows and the responses are concatenated.
//
// # USGS CSV Conventions
//
// Header row (columns are addressed by name, not position):
//
//	time,latitude,longitude,depth,mag,magType,nst,gap,dmin,rms,net,id,
//	updated,place,type,horizontalError,depthError,magError,magNst,status,
//	locationSource,magSource
//
// Time format:
//
//	ISO 8601 in UTC with millisecond precision, e.g. "2024-01-01T07:10:09.476Z".
//
// Magnitude:
//
//	Decimal value in the column "mag"; the scale is named in "magType"
//	(mb, ml, mww, ...). Rows with an empty magnitude are skipped.
//
// Windows:
//
//	Each window is half-open [start, end). The service treats endtime as
//	inclusive, so the query uses end minus one millisecond to keep adjacent
//	windows disjoint.
//
// # Energy
//
// Radiated seismic energy in joules is estimated from magnitude with the
// Gutenberg-Richter energy relation:
//
//	E = 10^(1.5*M + 4.8)
//
// One magnitude unit is therefore ~31.6x the energy. [EquivalentMagnitude] is
// the inverse and maps a summed energy back to a single-event magnitude.
//
// # Cumulative Fraction
//
// Events are stable-sorted by origin time, energy is running-summed, and each
// partial sum is divided by the grand total. The sequence is non-decreasing
// and its last value is exactly 1. [YearlyEnergy] applies the same computation
// to per-year totals.
package domain
