package joints

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fakeSource resolves groups from a fixed table.
type fakeSource struct {
	groups map[string][]string
	err    error
}

func (f *fakeSource) BodyNames(group string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[group], nil
}

func TestFilter_RemovesWheels(t *testing.T) {
	input := []string{"LWheel", "RWheel", "HeadYaw"}
	// Wheels go regardless of hardware variant, including two in a row.
	for _, bodyType := range []string{"", "H21", "H25"} {
		r := Resolver{BodyType: bodyType}
		got := r.Filter(input)
		if diff := cmp.Diff([]string{"HeadYaw"}, got); diff != "" {
			t.Errorf("body type %q (-want +got):\n%s", bodyType, diff)
		}
	}
}

func TestFilter_MimicJointsByBodyType(t *testing.T) {
	input := []string{"RHand", "LWristYaw", "HeadYaw"}

	h21 := Resolver{BodyType: "H21"}
	if diff := cmp.Diff([]string{"HeadYaw"}, h21.Filter(input)); diff != "" {
		t.Errorf("H21 (-want +got):\n%s", diff)
	}

	h25 := Resolver{BodyType: "H25"}
	if diff := cmp.Diff(input, h25.Filter(input)); diff != "" {
		t.Errorf("H25 (-want +got):\n%s", diff)
	}
}

func TestFilter_AllH21Mimics(t *testing.T) {
	input := []string{"LHand", "RHand", "LWristYaw", "RWristYaw", "HeadPitch"}
	r := Resolver{BodyType: "H21"}
	if diff := cmp.Diff([]string{"HeadPitch"}, r.Filter(input)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestFilter_PreservesOrderAndInput(t *testing.T) {
	input := []string{"HeadYaw", "LWheel", "HeadPitch", "LShoulderPitch"}
	r := Resolver{}
	got := r.Filter(input)
	if diff := cmp.Diff([]string{"HeadYaw", "HeadPitch", "LShoulderPitch"}, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if input[1] != "LWheel" {
		t.Error("input slice was mutated")
	}
}

func TestResolver_Controlled(t *testing.T) {
	source := &fakeSource{groups: map[string][]string{
		"LArm": {"LShoulderPitch", "LHand"},
		"RArm": {"RShoulderPitch", "RHand"},
	}}
	r := Resolver{BodyType: "H21", Source: source}

	got, err := r.Controlled([]string{"LArm", "RArm"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"LShoulderPitch", "RShoulderPitch"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestResolver_ControlledEmptyGroup(t *testing.T) {
	source := &fakeSource{groups: map[string][]string{"LArm": {"LShoulderPitch"}}}
	r := Resolver{Source: source}

	if _, err := r.Controlled([]string{"LArm", "Bogus"}); err == nil {
		t.Fatal("expected error for group with no joints")
	}
}

func TestResolver_ControlledSourceError(t *testing.T) {
	sourceErr := errors.New("daemon gone")
	r := Resolver{Source: &fakeSource{err: sourceErr}}

	_, err := r.Controlled([]string{"LArm"})
	if !errors.Is(err, sourceErr) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}
