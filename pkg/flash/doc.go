// Package flash models a page-erasable, word-programmable NOR flash part.
//
// The [Device] interface is the contract the eeprom engine programs against:
// erase works on whole pages and sets every bit, programming can only clear
// bits and must be bracketed by Unlock/Lock, and reads are plain loads.
//
// [Mem] is a host-backed implementation that enforces those semantics and
// adds the observability hooks the tests need: per-page erase counters,
// injectable program/erase failures, and a power-cut failpoint that freezes
// the array mid-workload so recovery paths can be exercised.
//
// Images persist a device's contents to a file (see [LoadImage] and
// [SaveImage]) so tools can operate on durable flash dumps.
package flash
