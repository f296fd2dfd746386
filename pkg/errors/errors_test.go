package errors

import "testing"

func TestValidationfWrapsSentinel(t *testing.T) {
	err := Validationf("start hour %d out of range", 25)
	if !Is(err, ErrValidation) {
		t.Fatalf("expected validation sentinel, got %v", err)
	}
	if err.Error() != "validation error: start hour 25 out of range" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
