// Package domain models hourly climate observations read from EnergyPlus
// weather (EPW) files and the chart jobs derived from them.
//
// # Data Source
//
// EPW files are published per station by climate.onebuilding.org and the
// EnergyPlus weather archive. Each file is plain comma-separated text: eight
// header lines followed by one data row per observation hour (8760 rows for
// a typical meteorological year).
//
// # EPW Conventions
//
// Location header (line 1):
//
//	LOCATION,<city>,<state>,<country>,<source>,<WMO>,<lat>,<lon>,<tz>,<elev>
//	e.g. "LOCATION,Tokyo,-,JPN,SRC,999999,35.68,139.77,9.0,40"
//	Numeric fields that do not parse are left unset rather than failing the load.
//
// Data row columns used (0-indexed):
//
//	0 year | 1 month | 2 day | 3 hour | 4 minute | 6 dry bulb [°C]
//	8 relative humidity [%] | 9 station pressure [Pa]
//
// Time convention:
//
//	Hours run 1..24 and mark the end of the observation interval, so
//	"hour 24" is midnight of the following day. Some writers emit minute 60
//	instead of 0 for the same reason. Minute 60 rolls into the next hour and
//	hour 24 rolls into the next day (crossing month and year boundaries).
//	Timestamps are local standard time with no zone conversion; they are
//	carried in time.UTC purely as a neutral location.
//
// Missing values:
//
//	99.9 dry bulb, 999 relative humidity and 999999 pressure are the EPW
//	sentinels for "not observed". Rows without a timestamp, dry bulb or
//	humidity are dropped. If a file has no pressure at all, the standard
//	atmosphere (101.325 kPa) is assumed for every row.
//
// # Partitioning
//
// Tables are partitioned by calendar month (always twelve buckets), by
// caller-defined seasons (month groups) and by caller-defined hour groups.
// Groups may overlap, in which case a row lands in more than one bucket.
//
// # Chart Jobs
//
// A [ChartJob] is the self-contained payload handed to the external
// psychrometric renderer. Its ID is a deterministic hash of location, label
// and row span so a job can be re-published without creating duplicates
// downstream. See [generateID].
package domain
