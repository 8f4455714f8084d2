package codec

import (
	"reflect"
	"testing"
)

type payload struct {
	Name  string            `json:"name"`
	Count int               `json:"count"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func TestCodec_RoundTrip(t *testing.T) {
	codecs := []Codec{Std{}, Fast{}}

	in := payload{
		Name:  "snapshot",
		Count: 42,
		Tags:  map[string]string{"kind": "cache_hit"},
	}

	for _, c := range codecs {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var out payload
			if err := c.Unmarshal(data, &out); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}

			if !reflect.DeepEqual(in, out) {
				t.Errorf("round trip = %+v, want %+v", out, in)
			}
		})
	}
}

func TestCodec_Parity(t *testing.T) {
	// Both implementations must produce interchangeable output.
	in := payload{Name: "parity", Count: 7}

	stdData, err := Std{}.Marshal(in)
	if err != nil {
		t.Fatalf("Std.Marshal() error = %v", err)
	}

	var out payload
	if err := (Fast{}).Unmarshal(stdData, &out); err != nil {
		t.Fatalf("Fast.Unmarshal(std output) error = %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("cross decode = %+v, want %+v", out, in)
	}
}

func TestForName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "jsoniter", want: "jsoniter"},
		{name: "std", want: "std"},
		{name: "unknown falls back", want: "std"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForName(tt.name).Name(); got != tt.want {
				t.Errorf("ForName(%q).Name() = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
