// Package tool declares the engine's tool contract: the static declaration
// every tool publishes (input/output extension sets, grouping, cross-project
// flags, exclusivity, parallelism cap) plus the narrow adapter interfaces a
// concrete compiler/linker/archiver implements. Adapters themselves are out
// of scope for the core; this package only defines the contract they meet.
package tool

import (
	"context"
	"path/filepath"

	"github.com/csbuild/csbuild/internal/ordered"
	"github.com/csbuild/csbuild/internal/settings"
)

// ExtensionSet is a set of file extensions, or the NONE sentinel meaning
// "null-input: run once per project" when used as a tool's input set.
type ExtensionSet struct {
	Extensions *ordered.Set[string]
	None       bool
}

// Exts builds an ExtensionSet from explicit extensions (e.g. ".c", ".cpp").
func Exts(exts ...string) ExtensionSet {
	return ExtensionSet{Extensions: ordered.NewSetOf(exts...)}
}

// NoneInput is the null-input sentinel: the tool takes no per-file input and
// instead runs once per project.
func NoneInput() ExtensionSet {
	return ExtensionSet{None: true}
}

// All is the "supports every architecture/platform" sentinel for
// SupportedArchitectures / SupportedPlatforms.
func All() ExtensionSet {
	return ExtensionSet{}
}

// Has reports whether ext is a member. An All()/zero-value set (no
// extensions, not None) matches everything; this lets
// SupportedArchitectures/SupportedPlatforms default to "no restriction".
func (s ExtensionSet) Has(ext string) bool {
	if s.None {
		return false
	}
	if s.Extensions == nil || s.Extensions.Len() == 0 {
		return true
	}
	return s.Extensions.Has(ext)
}

// Declaration is a tool's static contract, per the data model's Tool
// description.
type Declaration struct {
	Name string

	// InputFiles is the set of extensions this tool accepts as a single,
	// per-file input, or the NONE sentinel for a once-per-project tool.
	InputFiles ExtensionSet

	// InputGroups are extensions that must all be available (and drained of
	// in-flight producers) before the tool fires once over the whole group.
	InputGroups *ordered.Set[string]

	// CrossProjectInputGroups is InputGroups aggregated across this project
	// and its dependencies.
	CrossProjectInputGroups *ordered.Set[string]

	// Dependencies are extensions whose active production (within this
	// project) must drain before the tool may run.
	Dependencies *ordered.Set[string]

	// CrossProjectDependencies is Dependencies checked against every
	// dependency project instead of this one.
	CrossProjectDependencies *ordered.Set[string]

	// OutputFiles are the extensions this tool may produce.
	OutputFiles *ordered.Set[string]

	// SupportedArchitectures/SupportedPlatforms restrict which combinations
	// this tool participates in. All() (the zero value) means unrestricted.
	SupportedArchitectures ExtensionSet
	SupportedPlatforms     ExtensionSet

	// MaxParallel caps concurrent invocations of this tool across the whole
	// run. Zero means unbounded.
	MaxParallel int

	// Exclusive tools consume their inputs: once an exclusive tool claims an
	// input, other tools never see that input, only this tool's outputs.
	Exclusive bool
}

// IsNullInput reports whether this tool runs once per project rather than
// once per input file.
func (d Declaration) IsNullInput() bool { return d.InputFiles.None }

// HasGroups reports whether this tool has any group input declared. Per the
// open question in the design notes, a null-input tool with non-empty
// groups is enqueued only as a group run, never doubly as both.
func (d Declaration) HasGroups() bool {
	return (d.InputGroups != nil && d.InputGroups.Len() > 0) ||
		(d.CrossProjectInputGroups != nil && d.CrossProjectInputGroups.Len() > 0)
}

// SupportsArchitecture reports whether arch is permitted by this
// declaration.
func (d Declaration) SupportsArchitecture(arch string) bool {
	return d.SupportedArchitectures.Has(arch)
}

// SupportsPlatform reports whether platform is permitted by this
// declaration.
func (d Declaration) SupportsPlatform(platform string) bool {
	return d.SupportedPlatforms.Has(platform)
}

// BuildContext is the minimal, read-only view of a concrete project that an
// adapter needs. It exists so this package does not import the project
// package (which itself depends on tool.Declaration), avoiding a cycle.
type BuildContext interface {
	WorkingDirectory() string
	IntermediateDirectory() string
	OutputDirectory() string
	Setting(key string) (*settings.Value, bool)
}

// Adapter is the part of the tool contract every adapter implements
// regardless of single/group shape.
type Adapter interface {
	// Describe returns a human-readable command/args description for
	// --show-commands logging, or "" if the adapter has nothing to add.
	Describe(input *InputFile) string
}

// SingleAdapter is implemented by tools that run once per input file.
type SingleAdapter interface {
	Adapter
	Run(ctx context.Context, bc BuildContext, input *InputFile) ([]string, error)
}

// GroupAdapter is implemented by tools that run once over an aggregated set
// of input files.
type GroupAdapter interface {
	Adapter
	RunGroup(ctx context.Context, bc BuildContext, inputs []*InputFile) ([]string, error)
}

// Tool pairs a Declaration with the adapter implementation satisfying it.
// Exactly one of Single or Group is non-nil, matching whether InputFiles is
// per-file or InputGroups/CrossProjectInputGroups is set.
type Tool struct {
	Declaration
	Single SingleAdapter
	Group  GroupAdapter
}

// NewSingle builds a per-file tool.
func NewSingle(decl Declaration, impl SingleAdapter) *Tool {
	return &Tool{Declaration: decl, Single: impl}
}

// NewGroup builds a group tool.
func NewGroup(decl Declaration, impl GroupAdapter) *Tool {
	return &Tool{Declaration: decl, Group: impl}
}

// InputFile is one file flowing through the dataflow graph: its absolute
// path, what produced it (if anything), which tools have already run on it,
// and whether the checker found it up to date this run.
type InputFile struct {
	Path       string
	ProducedBy []string
	Applied    *ordered.Set[string]
	UpToDate   bool
}

// NewInputFile wraps an absolute path as an original (non-produced) input.
func NewInputFile(path string) *InputFile {
	return &InputFile{Path: path, Applied: ordered.NewSet[string]()}
}

// NewProducedInputFile wraps an absolute path produced by producedBy.
func NewProducedInputFile(path string, producedBy []string) *InputFile {
	return &InputFile{Path: path, ProducedBy: producedBy, Applied: ordered.NewSet[string]()}
}

// Extension returns the file extension, including the leading dot.
func (f *InputFile) Extension() string {
	return filepath.Ext(f.Path)
}

// HasApplied reports whether toolName has already run on this file.
func (f *InputFile) HasApplied(toolName string) bool {
	return f.Applied.Has(toolName)
}

// MarkApplied records that toolName has run on this file. Returns false if
// it was already recorded, preserving the "at most once" invariant.
func (f *InputFile) MarkApplied(toolName string) bool {
	return f.Applied.Add(toolName)
}
