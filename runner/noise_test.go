package runner

import (
	"testing"
)

func TestIgnorable(t *testing.T) {
	buildNoise := "Starting php to cpp transpiling...\n" +
		"Starting make...\n" +
		"objs cnt = 42\n" +
		"  17% [total jobs 120] [left jobs 99] [running jobs 3] [waiting jobs 18]\n"

	tests := []struct {
		name string
		set  string
		text string
		want bool
	}{
		{
			name: "empty text is always ignorable",
			set:  "build",
			text: "",
			want: true,
		},
		{
			name: "blank lines are skipped",
			set:  "build",
			text: "\n\n\n",
			want: true,
		},
		{
			name: "all build noise",
			set:  "build",
			text: buildNoise,
			want: true,
		},
		{
			name: "single unmatched line flips the whole text",
			set:  "build",
			text: buildNoise + "Compilation error at foo.php:3\n",
			want: false,
		},
		{
			name: "unmatched line in the middle",
			set:  "build",
			text: "Starting make...\nsegfault\nobjs cnt = 1\n",
			want: false,
		},
		{
			name: "line must match fully, not as a prefix",
			set:  "build",
			text: "Starting make... with extra trailing text\n",
			want: false,
		},
		{
			name: "runtime log line",
			set:  "runtime",
			text: "[2024-03-01 12:34:56.789 PHP/php-runner.cpp  120] warmup done\n",
			want: true,
		},
		{
			name: "runtime pattern rejects other stderr",
			set:  "runtime",
			text: "Warning: Division by zero\n",
			want: false,
		},
		{
			name: "asan informational banners",
			set:  "asan",
			text: "==12345==WARNING: ASan doesn't fully support makecontext/swapcontext functions and may produce false positives in some cases!\n" +
				"False positive error reports may follow\n" +
				"For details see https://github.com/google/sanitizers/issues/189\n",
			want: true,
		},
		{
			name: "asan real report is significant",
			set:  "asan",
			text: "==12345==ERROR: AddressSanitizer: heap-use-after-free\n",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns := buildNoisePatterns
			switch tt.set {
			case "runtime":
				patterns = runtimeNoisePatterns
			case "asan":
				patterns = asanNoisePatterns
			}
			if got := ignorable(patterns, []byte(tt.text)); got != tt.want {
				t.Errorf("ignorable() = %v, want %v", got, tt.want)
			}
		})
	}
}
