package analysis

import "github.com/ako-systems/autoplayer/internal/midiparse"

// TransposeMode selects manual vs auto-best-white-key transposition
// (spec §4.4 "Transposition").
type TransposeMode string

const (
	TransposeOff        TransposeMode = "off"
	TransposeManualMode TransposeMode = "manual"
	TransposeAuto       TransposeMode = "auto"
)

// PipelineConfig carries every stage's settings. Stages run in the
// fixed order mandated by spec §4.4: group filter, transposition (pre),
// melody extraction, black-key transpose (post), quantization, chord
// tagging.
type PipelineConfig struct {
	Groups []PitchGroup

	Transpose       TransposeMode
	ManualSemitones int

	Melody     MelodyConfig
	SkipMelody bool

	BlackKey BlackKeyStrategy

	QuantizeGridMs float64
	SkipQuantize   bool
}

// DefaultPipelineConfig mirrors the teacher's "sensible defaults, every
// stage opt-out-able" convention.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Transpose:      TransposeOff,
		Melody:         DefaultMelodyConfig(),
		SkipMelody:     true,
		BlackKey:       BlackKeyOff,
		QuantizeGridMs: DefaultQuantizeGridMs,
	}
}

// PipelineResult is the analysis pipeline's output: the transformed
// note stream plus whatever auto-selected parameters a caller might
// want to report back (e.g. the chosen auto-transpose semitone count).
type PipelineResult struct {
	Events           []midiparse.NoteEvent
	AppliedSemitones int
}

// Run applies the six analysis stages in spec order, returning the
// transformed stream. Each stage is individually skippable via cfg.
func Run(events []midiparse.NoteEvent, cfg PipelineConfig) PipelineResult {
	out := append([]midiparse.NoteEvent(nil), events...)

	out = FilterByGroups(out, cfg.Groups)

	appliedSemitones := 0
	switch cfg.Transpose {
	case TransposeManualMode:
		out = TransposeManual(out, cfg.ManualSemitones)
		appliedSemitones = cfg.ManualSemitones
	case TransposeAuto:
		appliedSemitones, out = TransposeAutoWhiteKey(out)
	}

	if !cfg.SkipMelody {
		out = ExtractMelody(out, cfg.Melody)
	}

	out = ApplyBlackKeyTranspose(out, cfg.BlackKey)

	if !cfg.SkipQuantize {
		out = Quantize(out, cfg.QuantizeGridMs)
	}

	out = TagChords(out)

	return PipelineResult{Events: out, AppliedSemitones: appliedSemitones}
}
