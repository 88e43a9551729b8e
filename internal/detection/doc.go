// Package detection locates graticule lines along an intensity profile.
//
// A graticule image sampled across its ruling gives a profile that alternates
// between background and line. DetectLines splits the profile at a threshold
// into runs and reports each run that lies on the line side as a Line, keyed
// by its leading edge. The leading edge is what a person picks by eye on a
// profile plot, so EdgePair returns leading edges too.
//
// # Coordinate System
//
// Positions are 0-based sample indices along the profile, which are column
// indices in the source image.
//
// # Limitations
//
// Detection is a plain threshold with no smoothing. Noisy frames may split a
// line into several runs; raise MinWidth or pass an explicit Threshold.
package detection
