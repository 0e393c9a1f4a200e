// Package biamp controls the conferencing DSP over its line-based TCP
// control protocol. Every exchange opens a fresh deadline-bounded
// session; the DSP limits concurrent sessions, so holding one open
// would starve the vendor's own config tooling.
package biamp
