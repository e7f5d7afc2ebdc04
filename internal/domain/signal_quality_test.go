package domain

import "testing"

func TestDetermineSignalQuality(t *testing.T) {
	cases := []struct {
		name string
		snr  float64
		rssi int
		want SignalQuality
	}{
		{"strong link", 8.0, -70, SignalGood},
		{"boundary good", SNRGood, RSSIGood, SignalGood},
		{"mid link", -10.0, -120, SignalFair},
		{"boundary fair", SNRFair, RSSIFair, SignalFair},
		{"weak snr", -20.0, -100, SignalBad},
		{"weak rssi", 5.0, -130, SignalBad},
		{"no data", 0, 0, SignalUnknown},
	}
	for _, tc := range cases {
		if got := DetermineSignalQuality(tc.snr, tc.rssi); got != tc.want {
			t.Fatalf("%s: DetermineSignalQuality(%v, %d) = %v, want %v", tc.name, tc.snr, tc.rssi, got, tc.want)
		}
	}
}

func TestSignalQualityString(t *testing.T) {
	if SignalGood.String() != "good" || SignalUnknown.String() != "unknown" {
		t.Fatalf("unexpected strings: %s %s", SignalGood, SignalUnknown)
	}
}
