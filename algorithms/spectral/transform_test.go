package spectral

import (
	"math"
	"testing"
)

func generateSine(amplitude, freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestNewTransform_Validation(t *testing.T) {
	if _, err := NewTransform(1000, 48000); err == nil {
		t.Error("non-power-of-two size: expected error")
	}
	if _, err := NewTransform(2048, 0); err == nil {
		t.Error("zero sample rate: expected error")
	}
}

func TestTransform_SinePeakBin(t *testing.T) {
	const (
		size       = 2048
		sampleRate = 48000
	)
	tr, err := NewTransform(size, sampleRate)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}

	// Exact bin frequency so no leakage spreads the peak
	binFreq := 40.0 * float64(sampleRate) / float64(size) // bin 40, 937.5 Hz
	spectrum, err := tr.Compute(generateSine(0.8, binFreq, sampleRate, size))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if len(spectrum.Magnitude) != size/2+1 {
		t.Fatalf("magnitude bins: got %d, want %d", len(spectrum.Magnitude), size/2+1)
	}

	peak := 0
	for i, m := range spectrum.Magnitude {
		if m > spectrum.Magnitude[peak] {
			peak = i
		}
	}
	if peak != 40 {
		t.Errorf("peak bin: got %d (%.1f Hz), want 40 (%.1f Hz)", peak, spectrum.FreqBins[peak], binFreq)
	}
}

func TestTransform_FreqBins(t *testing.T) {
	tr, err := NewTransform(2048, 48000)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}

	spectrum, err := tr.Compute(make([]float64, 2048))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if spectrum.FreqBins[0] != 0 {
		t.Errorf("bin 0: got %g Hz, want 0", spectrum.FreqBins[0])
	}
	nyquist := spectrum.FreqBins[len(spectrum.FreqBins)-1]
	if math.Abs(nyquist-24000.0) > 1e-9 {
		t.Errorf("last bin: got %g Hz, want 24000", nyquist)
	}
	if got := tr.FreqResolution(); math.Abs(got-48000.0/2048.0) > 1e-12 {
		t.Errorf("FreqResolution: got %g, want %g", got, 48000.0/2048.0)
	}
}

func TestTransform_InputLengthHandling(t *testing.T) {
	tr, err := NewTransform(512, 48000)
	if err != nil {
		t.Fatalf("NewTransform: %v", err)
	}

	if _, err := tr.Compute(nil); err == nil {
		t.Error("empty input: expected error")
	}

	// Short input zero-pads; long input takes the tail. Both must produce
	// a full-size spectrum without error.
	for _, n := range []int{100, 512, 2000} {
		spectrum, err := tr.Compute(generateSine(0.5, 440.0, 48000, n))
		if err != nil {
			t.Fatalf("Compute with %d samples: %v", n, err)
		}
		if len(spectrum.Magnitude) != 257 {
			t.Errorf("Compute with %d samples: got %d bins, want 257", n, len(spectrum.Magnitude))
		}
	}
}
