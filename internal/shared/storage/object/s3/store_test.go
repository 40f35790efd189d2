package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "job/audio.wav", want: "job/audio.wav"},
		{name: "simple prefix", prefix: "root", key: "job/audio.wav", want: "root/job/audio.wav"},
		{name: "prefix trailing slash", prefix: "root/", key: "job/audio.wav", want: "root/job/audio.wav"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/job/audio.wav", want: "root/job/audio.wav"},
		{name: "nested prefix", prefix: "root/sub", key: "job/audio.wav", want: "root/sub/job/audio.wav"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}
