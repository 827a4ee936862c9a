package ir

// Feature identifies a WebAssembly proposal beyond the core 1.0 set.
type Feature uint8

const (
	// FeatureNone marks core instructions, always accepted.
	FeatureNone Feature = iota

	// FeatureSignExtension covers i32.extend8_s and friends.
	FeatureSignExtension

	// FeatureSaturatingTruncation covers the 0xFC trunc_sat operators.
	FeatureSaturatingTruncation

	// FeatureBulkMemory covers memory.copy, memory.fill, memory.init,
	// data.drop, passive segments and the data count section.
	FeatureBulkMemory

	// FeatureMultiValue lifts the single-result restriction on block
	// types and function signatures.
	FeatureMultiValue

	// FeatureReferenceTypes covers funcref and externref values, the
	// ref.* instructions and typed select.
	FeatureReferenceTypes
)

// String returns the conventional proposal name.
func (f Feature) String() string {
	switch f {
	case FeatureNone:
		return "core"
	case FeatureSignExtension:
		return "sign-extension"
	case FeatureSaturatingTruncation:
		return "saturating-truncation"
	case FeatureBulkMemory:
		return "bulk-memory"
	case FeatureMultiValue:
		return "multi-value"
	case FeatureReferenceTypes:
		return "reference-types"
	}
	return "unknown"
}

// Features selects which proposals decode accepts and validate permits.
// The zero value accepts core WebAssembly 1.0 only.
type Features struct {
	SignExtension        bool
	SaturatingTruncation bool
	BulkMemory           bool
	MultiValue           bool
	ReferenceTypes       bool
}

// AllFeatures enables every supported proposal.
func AllFeatures() Features {
	return Features{
		SignExtension:        true,
		SaturatingTruncation: true,
		BulkMemory:           true,
		MultiValue:           true,
		ReferenceTypes:       true,
	}
}

// Enabled reports whether the given proposal is switched on.
func (fs Features) Enabled(f Feature) bool {
	switch f {
	case FeatureNone:
		return true
	case FeatureSignExtension:
		return fs.SignExtension
	case FeatureSaturatingTruncation:
		return fs.SaturatingTruncation
	case FeatureBulkMemory:
		return fs.BulkMemory
	case FeatureMultiValue:
		return fs.MultiValue
	case FeatureReferenceTypes:
		return fs.ReferenceTypes
	}
	return false
}

// Config controls decoding, validation and encoding behavior. The zero
// value is usable and maximally strict: core features only, serial
// encoding, no metadata emission.
type Config struct {
	// SkipValidation disables the whole-module validation pass that
	// normally runs after decode and before encode.
	SkipValidation bool

	// ParallelEncoding encodes function bodies concurrently. Output is
	// byte-identical to serial encoding.
	ParallelEncoding bool

	// EmitNameSection controls whether the name custom section is
	// written when the module carries any names.
	EmitNameSection bool

	// EmitProducersSection controls whether the producers custom section
	// is written when the module carries producer fields.
	EmitProducersSection bool

	// PreserveCustomSections keeps unrecognized custom sections through
	// a decode and encode cycle. When false they are dropped at decode.
	PreserveCustomSections bool

	// Features selects the accepted WebAssembly proposals.
	Features Features
}

// NewConfig returns the default configuration: every supported proposal
// enabled, names, producers and custom sections preserved.
func NewConfig() Config {
	return Config{
		EmitNameSection:        true,
		EmitProducersSection:   true,
		PreserveCustomSections: true,
		Features:               AllFeatures(),
	}
}
