package capture

import (
	"fmt"

	"github.com/RyanBlaney/sonido-voice/algorithms/filters"
	"github.com/RyanBlaney/sonido-voice/algorithms/spectral"
	"github.com/RyanBlaney/sonido-voice/algorithms/temporal"
	"github.com/RyanBlaney/sonido-voice/algorithms/tonal"
	"github.com/RyanBlaney/sonido-voice/logging"
)

// pipeline holds every per-stream analysis component. It is owned exclusively
// by the audio goroutine; nothing in here is safe for concurrent use and
// nothing needs to be.
//
// Pitch estimation needs more context than one low-latency quantum provides
// (two full periods of the lowest detectable frequency), so incoming chunks
// feed a sliding analysis window. Loudness and articulation react per chunk;
// pitch and spectral features read the window.
type pipeline struct {
	cfg    Config
	logger logging.Logger

	dcBlocker *filters.DCRemoval
	loudness  *temporal.Loudness
	artic     *temporal.ArticulationDetector
	estimator *tonal.PitchEstimator
	extractor *spectral.FeatureExtractor
	corrector *tonal.PitchCorrector

	pitchFilter *filters.Kalman
	volumeEMA   *filters.EMA
	brightEMA   *filters.EMA
	breathEMA   *filters.EMA

	scratch   []float64
	window    []float64
	windowLen int // Valid samples at the tail of window during warm-up

	prevState temporal.State
	seq       uint64
}

func newPipeline(cfg Config, logger logging.Logger) (*pipeline, error) {
	estimator, err := tonal.NewPitchEstimatorWithParams(tonal.PitchEstimatorParams{
		SampleRate:       cfg.SampleRate,
		MinFreq:          cfg.MinFrequency,
		MaxFreq:          cfg.MaxFrequency,
		ClarityThreshold: cfg.ClarityThreshold,
		MinVolumeDB:      cfg.MinVolumeDB,
	})
	if err != nil {
		return nil, err
	}

	extractor, err := spectral.NewFeatureExtractor(spectral.FeatureExtractorParams{
		FFTSize:         cfg.FFTSize,
		SampleRate:      cfg.SampleRate,
		MinFreq:         cfg.MinFrequency,
		MaxFreq:         float64(cfg.SampleRate) / 2,
		NoiseFloorFreq:  cfg.NoiseFloorFreq,
		BrightnessGamma: cfg.BrightnessGamma,
		EvalInterval:    cfg.SpectralInterval,
	})
	if err != nil {
		return nil, err
	}

	artic, err := temporal.NewArticulationDetector(temporal.ArticulationParams{
		EnergyThresholdDB:  cfg.EnergyThresholdDB,
		SilenceThresholdDB: cfg.SilenceThresholdDB,
		AttackDuration:     cfg.AttackDuration,
		MinSilenceDuration: cfg.MinSilenceDuration,
	})
	if err != nil {
		return nil, err
	}

	scale, err := tonal.NewScale(cfg.ScaleRoot, cfg.ScaleType)
	if err != nil {
		return nil, err
	}

	correctorParams := tonal.DefaultPitchCorrectorParams()
	correctorParams.MinFreq = cfg.MinFrequency
	correctorParams.MaxFreq = cfg.MaxFrequency
	corrector, err := tonal.NewPitchCorrector(correctorParams, scale)
	if err != nil {
		return nil, err
	}
	corrector.SetAutoTune(cfg.AutoTuneEnabled, cfg.AutoTuneSpeed)

	pitchFilter, err := filters.NewKalman(cfg.PitchProcessNoise, cfg.PitchMeasurementNoise)
	if err != nil {
		return nil, err
	}
	volumeEMA, err := filters.NewEMA(cfg.VolumeAlpha)
	if err != nil {
		return nil, err
	}
	brightEMA, err := filters.NewEMA(cfg.BrightnessAlpha)
	if err != nil {
		return nil, err
	}
	breathEMA, err := filters.NewEMA(cfg.BreathinessAlpha)
	if err != nil {
		return nil, err
	}

	windowSize := estimator.MinBufferSize()
	if cfg.FFTSize > windowSize {
		windowSize = cfg.FFTSize
	}

	return &pipeline{
		cfg:         cfg,
		logger:      logger,
		dcBlocker:   filters.NewDCRemovalWithCutoff(cfg.SampleRate, 20.0),
		loudness:    temporal.NewLoudness(),
		artic:       artic,
		estimator:   estimator,
		extractor:   extractor,
		corrector:   corrector,
		pitchFilter: pitchFilter,
		volumeEMA:   volumeEMA,
		brightEMA:   brightEMA,
		breathEMA:   breathEMA,
		window:      make([]float64, windowSize),
	}, nil
}

// process turns one chunk into one ControlFrame. Errors mean the frame is
// skipped; the stream continues.
func (p *pipeline) process(chunk AudioChunk) (ControlFrame, error) {
	if len(chunk.Samples) == 0 {
		return ControlFrame{}, fmt.Errorf("empty audio chunk")
	}

	// Chunks are read-only by contract; filter a copy
	if len(p.scratch) != len(chunk.Samples) {
		p.scratch = make([]float64, len(chunk.Samples))
	}
	copy(p.scratch, chunk.Samples)
	p.dcBlocker.ProcessInPlace(p.scratch)

	now := chunk.CaptureTime
	volumeDB := p.loudness.Measure(p.scratch)
	state := p.artic.Process(volumeDB, now)

	if state == temporal.StateSilence && p.prevState != temporal.StateSilence {
		// No stale pitch may survive a silent gap
		p.pitchFilter.Reset()
		p.corrector.Reset()
	}
	p.prevState = state

	p.appendWindow(p.scratch)
	if p.windowLen < len(p.window) {
		return ControlFrame{}, fmt.Errorf("%w: analysis window warming up (%d of %d samples)",
			tonal.ErrInsufficientSamples, p.windowLen, len(p.window))
	}

	estimate, err := p.estimator.Estimate(p.window)
	if err != nil {
		return ControlFrame{}, err
	}

	features, err := p.extractor.Extract(p.window)
	if err != nil {
		// Transient spectral failure: hold the previous values
		features = p.extractor.Held()
		p.logger.Debug("spectral extraction failed; holding previous features",
			logging.Fields{"error": err.Error()})
	}

	frame := ControlFrame{
		Confidence:   estimate.Confidence,
		VolumeDB:     p.volumeEMA.Update(volumeDB),
		Brightness:   p.brightEMA.Update(features.Brightness),
		Breathiness:  p.breathEMA.Update(features.Breathiness),
		Articulation: state,
		CaptureTime:  chunk.CaptureTime,
		Sequence:     p.seq,
	}
	p.seq++

	voiced := estimate.Voiced() &&
		estimate.Confidence >= p.cfg.MinConfidence &&
		state != temporal.StateSilence

	if voiced {
		smoothed := p.pitchFilter.Update(estimate.Frequency)
		frame.Frequency = p.corrector.Correct(tonal.PitchEstimate{
			Frequency:  smoothed,
			Confidence: estimate.Confidence,
		}, now)

		if note, noteErr := tonal.FrequencyToNote(frame.Frequency); noteErr == nil {
			frame.NoteName = note.Name
			frame.Octave = note.Octave
			frame.Cents = note.Cents
		}
	}

	return frame, nil
}

// appendWindow slides new samples into the tail of the analysis window
func (p *pipeline) appendWindow(samples []float64) {
	n := len(samples)
	w := len(p.window)

	if n >= w {
		copy(p.window, samples[n-w:])
		p.windowLen = w
		return
	}

	copy(p.window, p.window[n:])
	copy(p.window[w-n:], samples)

	p.windowLen += n
	if p.windowLen > w {
		p.windowLen = w
	}
}
