package s3store

import (
	"testing"
)

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var o options
			WithPrefix(tt.input)(&o)
			if o.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", o.prefix, tt.want)
			}
		})
	}
}

func TestStore_objectKey(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"", "cart", "items/cart"},
		{"", "tiercache:__index", "items/tiercache:__index"},
		{"sessions/abc/", "cart", "sessions/abc/items/cart"},
	}

	for _, tt := range tests {
		s := &Store{prefix: tt.prefix}
		if got := s.objectKey(tt.key); got != tt.want {
			t.Errorf("objectKey(%q) with prefix %q = %q, want %q", tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestStore_Close(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOptions_Compose(t *testing.T) {
	var o options
	for _, opt := range []Option{
		WithRegion("eu-west-1"),
		WithEndpoint("http://localhost:9000"),
		WithPrefix("sessions"),
	} {
		opt(&o)
	}

	want := options{prefix: "sessions/", region: "eu-west-1", endpoint: "http://localhost:9000"}
	if o != want {
		t.Errorf("options = %+v, want %+v", o, want)
	}
}
