package serializer

import (
	"errors"
	"testing"
)

func TestBodyIntact(t *testing.T) {
	body := []byte("This is the body\nwith a second line")
	got, err := Deserialize(Serialize(body))
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("Body: %s", got)
	}
}

func TestEmptyBody(t *testing.T) {
	got, err := Deserialize(Serialize(nil))
	if err != nil {
		t.Fatalf("Error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Body: %q", got)
	}
}

func TestCorruptedValues(t *testing.T) {
	valid := Serialize([]byte("Hello world"))
	tampered := append([]byte{}, valid...)
	tampered[len(tampered)-1] = '?'

	for name, value := range map[string][]byte{
		"nil":         nil,
		"plain text":  []byte("Hello world"),
		"truncated":   valid[:len(prefix)+2],
		"bad sum":     []byte(prefix + "zz\nHello world"),
		"tampered":    tampered,
		"prefix only": []byte(prefix),
	} {
		if _, err := Deserialize(value); !errors.Is(err, ErrCorrupted) {
			t.Fatalf("%s: expected corrupted error, got %v", name, err)
		}
	}
}
