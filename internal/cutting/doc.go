// Package cutting plans how to cut fixed-length stock tubes into requested
// details. It uses a deterministic best-fit-decreasing heuristic: details are
// sorted longest first, each tube is filled with whichever detail leaves the
// smallest gap, and identically cut tubes are grouped into patterns.
package cutting
