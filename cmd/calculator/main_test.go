package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestInputs(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "in.txt")
	if err := os.WriteFile(name, []byte("1+1\n\n  \nsin(90)\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		nl   bool
		want []string
	}{
		{"whole", false, []string{"1+1\n\n  \nsin(90)\n"}},
		{"lines", true, []string{"1+1", "sin(90)"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := inputs(name, false, c.nl)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("want %q, got %q", c.want, got)
			}
		})
	}
}

func TestInputsNone(t *testing.T) {
	got, err := inputs("", false, true)
	if got != nil || err != nil {
		t.Errorf("want nothing, got %q, %v", got, err)
	}
	blank := filepath.Join(t.TempDir(), "blank.txt")
	if err := os.WriteFile(blank, []byte(" \n\t\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = inputs(blank, false, false)
	if got != nil || err != nil {
		t.Errorf("blank file: want nothing, got %q, %v", got, err)
	}
	if _, err := inputs(filepath.Join(t.TempDir(), "missing"), false, false); err == nil {
		t.Error("missing file: no error")
	}
}
