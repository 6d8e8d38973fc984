package media

import "testing"

func TestThumbnailURL(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "replaces-extension", input: "https://cdn.example.com/videos/cat.mp4", want: "https://cdn.example.com/videos/cat.jpg"},
		{name: "keeps-query", input: "https://cdn.example.com/v/cat.webm?sig=abc", want: "https://cdn.example.com/v/cat.jpg?sig=abc"},
		{name: "dotted-host-without-extension", input: "https://cdn.example.com/videos/cat", want: "https://cdn.example.com/videos/cat.jpg"},
		{name: "only-last-extension", input: "https://cdn.example.com/a/clip.final.mov", want: "https://cdn.example.com/a/clip.final.jpg"},
		{name: "relative-path", input: "uploads/clip.mp4", want: "uploads/clip.jpg"},
		{name: "empty", input: "  ", want: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := ThumbnailURL(testCase.input); got != testCase.want {
				t.Fatalf("ThumbnailURL(%q) = %q, want %q", testCase.input, got, testCase.want)
			}
		})
	}
}

func TestObjectNameKeepsLowercasedExtension(t *testing.T) {
	if got := ObjectName("0192", "Holiday Clip.MP4"); got != "0192.mp4" {
		t.Fatalf("unexpected object name %q", got)
	}
	if got := ObjectName("0192", `C:\videos\clip.mov`); got != "0192.mov" {
		t.Fatalf("unexpected object name %q", got)
	}
	if got := ObjectName("0192", "noext"); got != "0192" {
		t.Fatalf("unexpected object name %q", got)
	}
}

func TestMinioStoreObjectURL(t *testing.T) {
	store, err := NewMinioStore(MinioConfig{
		Endpoint:  "localhost:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "clipshare-media",
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if got := store.ObjectURL("abc.mp4"); got != "http://localhost:9000/clipshare-media/abc.mp4" {
		t.Fatalf("unexpected endpoint url %q", got)
	}

	public, err := NewMinioStore(MinioConfig{
		Endpoint:      "minio:9000",
		Bucket:        "clipshare-media",
		PublicBaseURL: "https://media.example.com/",
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	if got := public.ObjectURL("abc.mp4"); got != "https://media.example.com/clipshare-media/abc.mp4" {
		t.Fatalf("unexpected public url %q", got)
	}
}

func TestNewMinioStoreRequiresEndpointAndBucket(t *testing.T) {
	if _, err := NewMinioStore(MinioConfig{Bucket: "b"}); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewMinioStore(MinioConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Fatalf("expected bucket error")
	}
}
