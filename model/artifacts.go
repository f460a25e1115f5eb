package model

import "sort"

// Slot identifies one of the fixed diagnostic artifact slots a test can
// produce. The set of slots is closed; population and retrieval share this
// single enumeration.
type Slot uint8

const (
	SlotPhpStderr Slot = iota
	SlotKphpBuildStderr
	SlotKphpBuildAsanLog
	SlotKphpRuntimeStderr
	SlotKphpRuntimeAsanLog
	SlotStdoutDiff

	slotCount
)

// slot file name inside the artifacts dir / human title for reports
var slotFiles = [slotCount]string{
	"php_stderr",
	"kphp_build_stderr",
	"kphp_build_asan_log",
	"kphp_runtime_stderr",
	"kphp_runtime_asan_log",
	"php_vs_kphp.diff",
}

var slotTitles = [slotCount]string{
	"php stderr",
	"kphp build stderr",
	"kphp build asan log",
	"kphp runtime stderr",
	"kphp runtime asan log",
	"php and kphp stdout diff",
}

// FileName returns the on-disk name of the slot inside the artifacts dir.
func (s Slot) FileName() string { return slotFiles[s] }

// Title returns the human-readable slot name used in reports.
func (s Slot) Title() string { return slotTitles[s] }

// Artifact is a single recorded diagnostic byproduct. An empty File means
// the slot is unpopulated. Priority conventionally carries the producing
// process's exit code, so real failures outrank zero-exit noise.
type Artifact struct {
	File     string
	Priority int
}

// NamedArtifact pairs an artifact with its slot title for reporting.
type NamedArtifact struct {
	Title    string
	Artifact Artifact
}

// Artifacts is the fixed collection of per-test diagnostic slots.
type Artifacts struct {
	slots [slotCount]Artifact
}

// Get returns the artifact stored in the given slot.
func (a *Artifacts) Get(s Slot) Artifact { return a.slots[s] }

// Set populates the given slot.
func (a *Artifacts) Set(s Slot, file string, priority int) {
	a.slots[s] = Artifact{File: file, Priority: priority}
}

// Clear empties the given slot without touching the file on disk.
func (a *Artifacts) Clear(s Slot) { a.slots[s] = Artifact{} }

// All returns the populated slots sorted by descending priority, stable
// within equal priorities so slot order breaks ties.
func (a *Artifacts) All() []NamedArtifact {
	var out []NamedArtifact
	for s := Slot(0); s < slotCount; s++ {
		if a.slots[s].File != "" {
			out = append(out, NamedArtifact{Title: s.Title(), Artifact: a.slots[s]})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Artifact.Priority > out[j].Artifact.Priority
	})
	return out
}

// Empty reports whether no slot is populated.
func (a *Artifacts) Empty() bool {
	for s := Slot(0); s < slotCount; s++ {
		if a.slots[s].File != "" {
			return false
		}
	}
	return true
}
