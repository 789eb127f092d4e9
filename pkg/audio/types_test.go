// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion functions and format helpers
package audio

import "testing"

func TestF32ToI16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"half positive", 0.5, 16383},
		{"half negative", -0.5, -16384},
		{"max", 1, 32767},
		{"min", -1, -32768},
		{"clip positive", 2.5, 32767},
		{"clip negative", -3, -32768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := F32ToI16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestF32ToU16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected uint16
	}{
		{"zero is mid-scale", 0, SilenceU16},
		{"max", 1, 65535},
		{"min", -1, 0},
		{"clip positive", 1.5, 65535},
		{"clip negative", -1.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := F32ToU16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestI16ToF32(t *testing.T) {
	if got := I16ToF32(0); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
	if got := I16ToF32(-32768); got != -1 {
		t.Errorf("expected -1, got %f", got)
	}
	if got := I16ToF32(16384); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestRoundTripI16(t *testing.T) {
	// Test that 16-bit samples survive a trip through the float domain
	samples := []int16{0, 100, -100, 1000, -1000, -32768}

	for _, original := range samples {
		f := I16ToF32(original)
		result := F32ToI16(f)
		if original < 0 && result != original {
			t.Errorf("round-trip failed: %d -> %f -> %d", original, f, result)
		}
		if original >= 0 && (result < original-1 || result > original) {
			t.Errorf("round-trip drifted: %d -> %f -> %d", original, f, result)
		}
	}
}

func TestEncodingString(t *testing.T) {
	tests := []struct {
		enc      Encoding
		expected string
	}{
		{EncodingU16, "U16"},
		{EncodingI16, "I16"},
		{EncodingF32, "F32"},
		{Encoding(42), "Unknown(42)"},
	}

	for _, tt := range tests {
		if got := tt.enc.String(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}

func TestEncodingBytesPerSample(t *testing.T) {
	if EncodingF32.BytesPerSample() != 4 {
		t.Error("F32 should be 4 bytes")
	}
	if EncodingI16.BytesPerSample() != 2 || EncodingU16.BytesPerSample() != 2 {
		t.Error("16-bit encodings should be 2 bytes")
	}
	if !EncodingF32.IsFloat() || EncodingI16.IsFloat() {
		t.Error("only F32 is floating point")
	}
}

func TestFormatString(t *testing.T) {
	f := Format{Channels: 2, SampleRate: 48000, Encoding: EncodingF32}
	if got := f.String(); got != "48000Hz/2ch/F32" {
		t.Errorf("unexpected format string %q", got)
	}
}
